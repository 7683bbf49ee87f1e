package automation

import "errors"

var (
	// ErrInvalidAction indicates an action violating the tagged-variant
	// invariant or carrying an unknown category.
	ErrInvalidAction = errors.New("automation: invalid action")

	// ErrNoDispatcher indicates no dispatcher is registered for an
	// action's category.
	ErrNoDispatcher = errors.New("automation: no dispatcher for category")
)
