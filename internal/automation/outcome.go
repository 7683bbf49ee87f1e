package automation

import "context"

// Outcome statuses recorded per action (and per event for non-dispatch
// results).
const (
	StatusSuccess           = "success"
	StatusFailure           = "failure"
	StatusSkippedPaused     = "skipped-paused"
	StatusDeferred          = "deferred"
	StatusInvalidTransition = "invalid-transition"
)

// Outcome is the result of one dispatch attempt sequence (or a skip).
type Outcome struct {
	ActionID   string  `json:"action_id,omitempty"`
	Category   string  `json:"category,omitempty"`
	Status     string  `json:"status"`
	Attempts   int     `json:"attempts,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms,omitempty"`
}

// Dispatcher executes actions against one device category's collaborator.
// Execute reports the final result after exhausting the action's retry
// policy; it never panics the caller.
type Dispatcher interface {
	Execute(ctx context.Context, action Action) Outcome
}
