package schedule

import "errors"

// ErrInvalidSchedule indicates a schedule file missing required identifiers.
var ErrInvalidSchedule = errors.New("schedule: invalid schedule")
