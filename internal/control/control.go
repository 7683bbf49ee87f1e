package control

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Room is a viewing room where a subset of teams watches the stream.
// Popups are targeted at rooms whose teams appear in an upcoming match.
type Room struct {
	StreamURL string   `json:"stream_url,omitempty"`
	Teams     []string `json:"teams,omitempty"`
}

// QuietWindow is an operator-configured time range during which
// scheduled-match notifications are suppressed.
type QuietWindow struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// Active reports whether now falls inside the window. A window missing
// either bound is never active.
func (w QuietWindow) Active(now time.Time) bool {
	if w.Start == nil || w.End == nil {
		return false
	}
	return !now.Before(*w.Start) && !now.After(*w.End)
}

// Config is the operational configuration edited live by operators. It is
// always consumed as an immutable snapshot: one snapshot per processing
// decision, never mutated in place.
type Config struct {
	DeviceIPs           map[string]string `json:"device_ips"`
	FieldToCamera       map[string]string `json:"field_to_camera"`
	Paused              map[string]bool   `json:"paused"`
	ScheduleLeadMatches int               `json:"schedule_lead_matches"`
	MatchQueuePause     QuietWindow       `json:"match_queue_pause"`
	Rooms               map[string]Room   `json:"rooms"`
}

// CategoryPaused reports whether dispatch for the category is paused.
func (c *Config) CategoryPaused(category string) bool {
	return c.Paused[category]
}

// CameraForField returns the camera routed to a field, or "" when unmapped.
func (c *Config) CameraForField(fieldID string) string {
	return c.FieldToCamera[fieldID]
}

// RoomsForTeams returns the IDs of rooms whose team list intersects teams.
func (c *Config) RoomsForTeams(teams []string) []string {
	var ids []string
	for id, room := range c.Rooms {
		for _, team := range teams {
			if containsTeam(room.Teams, team) {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids
}

func containsTeam(list []string, team string) bool {
	for _, t := range list {
		if t == team {
			return true
		}
	}
	return false
}

func defaults() *Config {
	return &Config{
		DeviceIPs:           map[string]string{},
		FieldToCamera:       map[string]string{},
		Paused:              map[string]bool{},
		ScheduleLeadMatches: 5,
		Rooms:               map[string]Room{},
	}
}

func (c *Config) validate() error {
	if c.ScheduleLeadMatches < 0 {
		return fmt.Errorf("%w: schedule_lead_matches must not be negative", ErrInvalidConfig)
	}
	for category := range c.Paused {
		switch category {
		case "video", "audio", "lighting":
		default:
			return fmt.Errorf("%w: unknown paused category %q", ErrInvalidConfig, category)
		}
	}
	if (c.MatchQueuePause.Start == nil) != (c.MatchQueuePause.End == nil) {
		return fmt.Errorf("%w: match_queue_pause requires both start and end", ErrInvalidConfig)
	}
	if c.MatchQueuePause.Start != nil && c.MatchQueuePause.End.Before(*c.MatchQueuePause.Start) {
		return fmt.Errorf("%w: match_queue_pause end precedes start", ErrInvalidConfig)
	}
	return nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("control: read config file: %w", err)
	}

	cfg := defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("control: parse config file: %w", err)
	}

	if cfg.DeviceIPs == nil {
		cfg.DeviceIPs = map[string]string{}
	}
	if cfg.FieldToCamera == nil {
		cfg.FieldToCamera = map[string]string{}
	}
	if cfg.Paused == nil {
		cfg.Paused = map[string]bool{}
	}
	if cfg.Rooms == nil {
		cfg.Rooms = map[string]Room{}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
