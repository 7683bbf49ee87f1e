package field

import (
	"fmt"
	"time"
)

// State is a field's position in the match lifecycle.
type State string

// The closed set of field states.
const (
	StateStandby   State = "standby"
	StateQueued    State = "queued"
	StateCountdown State = "countdown"
	StateActive    State = "active"
	StateFinish    State = "finish"
)

// FieldState is the canonical record for one field. Only the event
// processor writes it; everything else reads.
type FieldState struct {
	FieldID     string    `json:"field_id"`
	State       State     `json:"state"`
	MatchID     string    `json:"match_id,omitempty"`
	MatchName   string    `json:"match_name,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// TransitionKey returns the "old->new" key used for state-change mapping
// lookups.
func TransitionKey(old, new State) string {
	return fmt.Sprintf("%s->%s", old, new)
}

// transitions is the allowed state graph: the normal match cycle plus
// abort/reset edges from every state back to standby.
var transitions = map[State][]State{
	StateStandby:   {StateQueued, StateStandby},
	StateQueued:    {StateCountdown, StateStandby},
	StateCountdown: {StateActive, StateStandby},
	StateActive:    {StateFinish, StateStandby},
	StateFinish:    {StateStandby},
}

// Allowed reports whether the old→new transition exists in the state graph.
func Allowed(old, new State) bool {
	for _, next := range transitions[old] {
		if next == new {
			return true
		}
	}
	return false
}

// eventTransitions maps event types to the state they request. Event types
// absent here carry no state semantics.
var eventTransitions = map[string]State{
	"fieldMatchAssigned": StateQueued,
	"fieldActivated":     StateCountdown,
	"matchStarted":       StateActive,
	"matchStopped":       StateFinish,
	"matchAborted":       StateStandby,
	"fieldReset":         StateStandby,
}

// TargetState returns the state requested by an event type, if any.
func TargetState(eventType string) (State, bool) {
	s, ok := eventTransitions[eventType]
	return s, ok
}

// Valid reports whether s is one of the closed state set.
func (s State) Valid() bool {
	switch s {
	case StateStandby, StateQueued, StateCountdown, StateActive, StateFinish:
		return true
	}
	return false
}

// InMatchCycle reports whether the state indicates a match is assigned or
// in progress on the field. The scheduler uses this to derive the most
// recently played match per division.
func (s State) InMatchCycle() bool {
	switch s {
	case StateQueued, StateCountdown, StateActive, StateFinish:
		return true
	}
	return false
}
