package control

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeControlFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "control.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write control file: %v", err)
	}
	return path
}

const validControl = `{
  "device_ips": {"atem": "10.0.0.10", "lighting": "10.0.0.11"},
  "field_to_camera": {"1": "cam1", "2": "cam2"},
  "paused": {"video": false, "audio": true, "lighting": false},
  "schedule_lead_matches": 3,
  "match_queue_pause": {"start": null, "end": null},
  "rooms": {
    "room-a": {"stream_url": "https://example.com/a", "teams": ["101A", "102B"]},
    "room-b": {"teams": ["205C"]}
  }
}`

func TestProviderLoad(t *testing.T) {
	p, err := NewProvider(writeControlFile(t, validControl), nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	cfg := p.Current()
	if cfg.ScheduleLeadMatches != 3 {
		t.Errorf("ScheduleLeadMatches = %d, want 3", cfg.ScheduleLeadMatches)
	}
	if !cfg.CategoryPaused("audio") {
		t.Error("audio should be paused")
	}
	if cfg.CategoryPaused("video") {
		t.Error("video should not be paused")
	}
	if got := cfg.CameraForField("2"); got != "cam2" {
		t.Errorf("CameraForField(2) = %q, want cam2", got)
	}
	if got := cfg.CameraForField("9"); got != "" {
		t.Errorf("CameraForField(9) = %q, want empty", got)
	}
}

func TestProviderMissingFile(t *testing.T) {
	_, err := NewProvider(filepath.Join(t.TempDir(), "absent.json"), nil)
	if err == nil {
		t.Fatal("NewProvider with missing file should fail")
	}
}

func TestProviderReloadKeepsOldSnapshotOnFailure(t *testing.T) {
	path := writeControlFile(t, validControl)
	p, err := NewProvider(path, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	before := p.Current()

	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}

	if err := p.Reload(); err == nil {
		t.Fatal("Reload with corrupt file should fail")
	}
	if p.Current() != before {
		t.Error("failed reload replaced the active snapshot")
	}
}

func TestProviderReloadSwapsSnapshot(t *testing.T) {
	path := writeControlFile(t, validControl)
	p, err := NewProvider(path, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	before := p.Current()

	updated := `{"schedule_lead_matches": 7, "paused": {"video": true}}`
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("update file: %v", err)
	}

	if err := p.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	after := p.Current()
	if after == before {
		t.Fatal("Reload did not swap the snapshot")
	}
	if after.ScheduleLeadMatches != 7 || !after.CategoryPaused("video") {
		t.Errorf("reloaded config = %+v", after)
	}
	// Old snapshot still usable by in-flight work.
	if before.ScheduleLeadMatches != 3 {
		t.Error("previous snapshot mutated by reload")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative lead matches", `{"schedule_lead_matches": -1}`},
		{"unknown paused category", `{"paused": {"pyrotechnics": true}}`},
		{"pause window missing end", `{"match_queue_pause": {"start": "2026-03-14T12:00:00Z", "end": null}}`},
		{"pause window end before start", `{"match_queue_pause": {"start": "2026-03-14T12:00:00Z", "end": "2026-03-14T11:00:00Z"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(writeControlFile(t, tt.content), nil)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("NewProvider = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestQuietWindowActive(t *testing.T) {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	tests := []struct {
		name   string
		window QuietWindow
		now    time.Time
		want   bool
	}{
		{"inside window", QuietWindow{&start, &end}, start.Add(30 * time.Minute), true},
		{"at start", QuietWindow{&start, &end}, start, true},
		{"at end", QuietWindow{&start, &end}, end, true},
		{"before window", QuietWindow{&start, &end}, start.Add(-time.Minute), false},
		{"after window", QuietWindow{&start, &end}, end.Add(time.Minute), false},
		{"unset window", QuietWindow{}, start, false},
		{"only start set", QuietWindow{Start: &start}, start, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.Active(tt.now); got != tt.want {
				t.Errorf("Active(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestRoomsForTeams(t *testing.T) {
	p, err := NewProvider(writeControlFile(t, validControl), nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	cfg := p.Current()

	got := cfg.RoomsForTeams([]string{"102B", "999Z"})
	if len(got) != 1 || got[0] != "room-a" {
		t.Errorf("RoomsForTeams = %v, want [room-a]", got)
	}

	if got := cfg.RoomsForTeams([]string{"999Z"}); len(got) != 0 {
		t.Errorf("RoomsForTeams with unknown team = %v, want empty", got)
	}
}
