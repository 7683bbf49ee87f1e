package automation

import (
	"errors"
	"testing"
)

func TestActionValidate(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{
			name:   "valid lighting",
			action: Action{Category: CategoryLighting, Lighting: &LightingCue{PresetID: "ready"}},
		},
		{
			name:   "valid video",
			action: Action{Category: CategoryVideo, Video: &VideoCue{CameraID: "cam1"}},
		},
		{
			name:   "valid audio",
			action: Action{Category: CategoryAudio, Audio: &AudioCue{Command: "play"}},
		},
		{
			name:    "no payload",
			action:  Action{Category: CategoryAudio},
			wantErr: true,
		},
		{
			name: "two payloads",
			action: Action{
				Category: CategoryAudio,
				Audio:    &AudioCue{Command: "play"},
				Video:    &VideoCue{CameraID: "cam1"},
			},
			wantErr: true,
		},
		{
			name:    "category payload mismatch",
			action:  Action{Category: CategoryLighting, Audio: &AudioCue{Command: "play"}},
			wantErr: true,
		},
		{
			name:    "unknown category",
			action:  Action{Category: "pyrotechnics", Audio: &AudioCue{Command: "boom"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAction) {
					t.Fatalf("Validate() = %v, want ErrInvalidAction", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	raw := map[string]any{
		"category": "lighting",
		"lighting": map[string]any{"preset_id": "finale", "command": "go"},
	}

	a, err := ParseAction(raw)
	if err != nil {
		t.Fatalf("ParseAction: %v", err)
	}
	if a.Category != CategoryLighting || a.Lighting == nil || a.Lighting.PresetID != "finale" {
		t.Errorf("ParseAction = %+v", a)
	}

	if _, err := ParseAction(map[string]any{"category": "lighting"}); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("ParseAction without payload = %v, want ErrInvalidAction", err)
	}
}

func TestRetryPolicyNormalized(t *testing.T) {
	p := RetryPolicy{}.Normalized()
	if p.MaxAttempts != DefaultMaxAttempts || p.BackoffMS != DefaultBackoffMS || p.TimeoutMS != DefaultTimeoutMS {
		t.Errorf("Normalized() = %+v", p)
	}

	p = RetryPolicy{MaxAttempts: 5, BackoffMS: 100, TimeoutMS: 1000}.Normalized()
	if p.MaxAttempts != 5 || p.BackoffMS != 100 || p.TimeoutMS != 1000 {
		t.Errorf("Normalized() overwrote explicit values: %+v", p)
	}
}

func TestWithID(t *testing.T) {
	a := Action{Category: CategoryAudio, Audio: &AudioCue{Command: "play"}}
	withID := a.WithID()
	if withID.ID == "" {
		t.Error("WithID produced empty ID")
	}
	if withID.Retry.MaxAttempts != DefaultMaxAttempts {
		t.Error("WithID did not normalize retry policy")
	}
	if a.ID != "" {
		t.Error("WithID mutated the original")
	}
}

func TestActionTarget(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		want   string
	}{
		{"lighting preset", Action{Lighting: &LightingCue{PresetID: "ready"}}, "ready"},
		{"lighting command only", Action{Lighting: &LightingCue{Command: "release"}}, "release"},
		{"video camera", Action{Video: &VideoCue{CameraID: "cam2"}}, "cam2"},
		{"audio command", Action{Audio: &AudioCue{Command: "pause"}}, "pause"},
		{"empty", Action{}, ""},
	}
	for _, tt := range tests {
		if got := tt.action.Target(); got != tt.want {
			t.Errorf("%s: Target() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
