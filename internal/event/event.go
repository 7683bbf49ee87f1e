package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Registered event types. An event whose Type is not in this set is
// rejected at validation and never reaches the processor's decision logic.
const (
	TypeFieldMatchAssigned     = "fieldMatchAssigned"
	TypeFieldActivated         = "fieldActivated"
	TypeMatchStarted           = "matchStarted"
	TypeMatchStopped           = "matchStopped"
	TypeMatchAborted           = "matchAborted"
	TypeFieldReset             = "fieldReset"
	TypeAudienceDisplayChanged = "audienceDisplayChanged"
	TypeMatchScheduled         = "match_scheduled"
	TypeManualPopup            = "manual_popup"
	TypeManualAction           = "manual_action"
)

var registeredTypes = map[string]bool{
	TypeFieldMatchAssigned:     true,
	TypeFieldActivated:         true,
	TypeMatchStarted:           true,
	TypeMatchStopped:           true,
	TypeMatchAborted:           true,
	TypeFieldReset:             true,
	TypeAudienceDisplayChanged: true,
	TypeMatchScheduled:         true,
	TypeManualPopup:            true,
	TypeManualAction:           true,
}

// IsRegisteredType reports whether t is a known event type.
func IsRegisteredType(t string) bool {
	return registeredTypes[t]
}

// Event is a normalized occurrence from the match-control connector, an
// operator, or the match scheduler. Events are immutable once enqueued.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Field     string         `json:"field,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// New constructs an event with a generated ID and the current timestamp.
func New(eventType, fieldID string, payload map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Field:     fieldID,
		Payload:   payload,
	}
}

// Validate checks the event against the registered type set and basic
// schema requirements.
func (e Event) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.Type) == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidEvent)
	}
	if !IsRegisteredType(e.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}
	return nil
}

// PayloadString returns the named payload value as a string, or "" when
// absent or not a string.
func (e Event) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload[key].(string)
	return s
}

// PayloadFloat returns the named payload value as a float64. JSON decoding
// produces float64 for all numbers, so this covers numeric payload fields.
func (e Event) PayloadFloat(key string) (float64, bool) {
	if e.Payload == nil {
		return 0, false
	}
	f, ok := e.Payload[key].(float64)
	return f, ok
}
