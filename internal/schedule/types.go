package schedule

import "time"

// Match is one scheduled match within a division. Matches are kept in
// schedule order; the slice index is the ordinal the scheduler measures
// lead distance in.
type Match struct {
	ID            string    `json:"id"`
	Number        int       `json:"number"`
	Round         string    `json:"round,omitempty"`
	Name          string    `json:"name,omitempty"`
	FieldID       string    `json:"field_id,omitempty"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Teams         []string  `json:"teams,omitempty"`
}

// Division groups matches that share one playing order.
type Division struct {
	ID      string  `json:"id"`
	Name    string  `json:"name,omitempty"`
	Matches []Match `json:"matches"`
}

// Schedule is the externally fetched match schedule. Version identifies
// the logical schedule revision for notification idempotency; when the
// fetcher does not set one, the loader derives it from the file content.
type Schedule struct {
	Version   string     `json:"version,omitempty"`
	Divisions []Division `json:"divisions"`
}
