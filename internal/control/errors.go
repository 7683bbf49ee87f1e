package control

import "errors"

// ErrInvalidConfig indicates the operational config file failed validation.
var ErrInvalidConfig = errors.New("control: invalid config")
