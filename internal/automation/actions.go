package automation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Device categories. An Action belongs to exactly one.
const (
	CategoryLighting = "lighting"
	CategoryVideo    = "video"
	CategoryAudio    = "audio"
)

// RetryPolicy controls dispatch retries for a single action.
type RetryPolicy struct {
	MaxAttempts int `json:"max_attempts,omitempty"`
	BackoffMS   int `json:"backoff_ms,omitempty"`
	TimeoutMS   int `json:"timeout_ms,omitempty"`
}

// Defaults applied when the mapping file leaves retry fields unset.
const (
	DefaultMaxAttempts = 2
	DefaultBackoffMS   = 250
	DefaultTimeoutMS   = 5000
)

// Normalized returns the policy with defaults filled in for unset fields.
func (p RetryPolicy) Normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BackoffMS <= 0 {
		p.BackoffMS = DefaultBackoffMS
	}
	if p.TimeoutMS <= 0 {
		p.TimeoutMS = DefaultTimeoutMS
	}
	return p
}

// Backoff returns the fixed delay between attempts.
func (p RetryPolicy) Backoff() time.Duration {
	return time.Duration(p.BackoffMS) * time.Millisecond
}

// Timeout returns the per-attempt dispatch deadline.
func (p RetryPolicy) Timeout() time.Duration {
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// LightingCue addresses the lighting console.
type LightingCue struct {
	PresetID   string   `json:"preset_id,omitempty"`
	ReleaseID  string   `json:"release_id,omitempty"`
	TargetType string   `json:"target_type,omitempty"`
	Command    string   `json:"command,omitempty"`
	OSCAddress string   `json:"osc_address,omitempty"`
	OSCValue   *float64 `json:"osc_value,omitempty"`
	DelayS     int      `json:"delay_s,omitempty"`
}

// VideoCue addresses the video switcher.
type VideoCue struct {
	CameraID   string `json:"camera_id,omitempty"`
	Transition string `json:"transition,omitempty"`
	Command    string `json:"command,omitempty"`
}

// AudioCue addresses the music playback controller.
type AudioCue struct {
	Command     string         `json:"command"`
	Track       string         `json:"track,omitempty"`
	Playlist    string         `json:"playlist,omitempty"`
	TrackNumber *int           `json:"track_number,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Action is a closed tagged variant over the device categories. Exactly one
// of the payload pointers is set, matching Category. Actions are transient:
// the resolver constructs them and the dispatcher consumes them; they are
// never persisted, only their outcomes are.
type Action struct {
	ID       string      `json:"id,omitempty"`
	Category string      `json:"category"`
	Retry    RetryPolicy `json:"retry,omitempty"`

	Lighting *LightingCue `json:"lighting,omitempty"`
	Video    *VideoCue    `json:"video,omitempty"`
	Audio    *AudioCue    `json:"audio,omitempty"`
}

// Validate checks the tagged-variant invariant: category is known and the
// matching payload, and only that payload, is present.
func (a Action) Validate() error {
	set := 0
	if a.Lighting != nil {
		set++
	}
	if a.Video != nil {
		set++
	}
	if a.Audio != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: expected exactly one payload, got %d", ErrInvalidAction, set)
	}

	switch a.Category {
	case CategoryLighting:
		if a.Lighting == nil {
			return fmt.Errorf("%w: lighting action missing lighting payload", ErrInvalidAction)
		}
	case CategoryVideo:
		if a.Video == nil {
			return fmt.Errorf("%w: video action missing video payload", ErrInvalidAction)
		}
	case CategoryAudio:
		if a.Audio == nil {
			return fmt.Errorf("%w: audio action missing audio payload", ErrInvalidAction)
		}
	default:
		return fmt.Errorf("%w: unknown category %q", ErrInvalidAction, a.Category)
	}

	return nil
}

// Target returns the device-facing address of the action: the lighting
// preset, the camera, or the audio command. Used for command topics and
// telemetry tags.
func (a Action) Target() string {
	switch {
	case a.Lighting != nil:
		if a.Lighting.PresetID != "" {
			return a.Lighting.PresetID
		}
		return a.Lighting.Command
	case a.Video != nil:
		if a.Video.CameraID != "" {
			return a.Video.CameraID
		}
		return a.Video.Command
	case a.Audio != nil:
		return a.Audio.Command
	default:
		return ""
	}
}

// WithID returns a copy of the action carrying a fresh dispatch ID and a
// normalized retry policy. Called once per resolved instance so retries of
// the same dispatch share an ID.
func (a Action) WithID() Action {
	a.ID = uuid.New().String()
	a.Retry = a.Retry.Normalized()
	return a
}

// ParseAction decodes and validates a raw action payload, as submitted by
// operators through manual_action events.
func ParseAction(raw map[string]any) (Action, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}

	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}

	if err := a.Validate(); err != nil {
		return Action{}, err
	}

	return a, nil
}
