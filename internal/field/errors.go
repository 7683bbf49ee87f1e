package field

import "errors"

var (
	// ErrInvalidState indicates a state value outside the closed set or a
	// record missing its field ID.
	ErrInvalidState = errors.New("field: invalid state")

	// ErrInvalidTransition indicates a requested transition absent from
	// the allowed state graph.
	ErrInvalidTransition = errors.New("field: invalid transition")
)
