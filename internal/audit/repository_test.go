package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stagecue/stagecue-core/internal/automation"
)

// setupTestDB creates an in-memory SQLite database with the audit schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	schema := `
		CREATE TABLE audit_entries (
			id          TEXT PRIMARY KEY,
			event_id    TEXT NOT NULL,
			event_type  TEXT NOT NULL,
			field_id    TEXT,
			outcomes    TEXT,
			created_at  TEXT NOT NULL
		);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	entry := &Entry{
		EventID:   "evt-1",
		EventType: "matchStarted",
		FieldID:   "1",
		Outcomes: []automation.Outcome{
			{ActionID: "a1", Category: "audio", Status: automation.StatusSuccess, Attempts: 1},
			{ActionID: "a2", Category: "lighting", Status: automation.StatusFailure, Attempts: 2, Error: "timeout"},
		},
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Error("Create did not fill ID and CreatedAt")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("List = total %d, entries %d", result.Total, len(result.Entries))
	}

	got := result.Entries[0]
	if got.EventID != "evt-1" || got.FieldID != "1" {
		t.Errorf("entry = %+v", got)
	}
	if len(got.Outcomes) != 2 || got.Outcomes[1].Error != "timeout" {
		t.Errorf("outcomes = %+v", got.Outcomes)
	}
}

func TestRecord(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	outcomes := []automation.Outcome{{Status: automation.StatusSkippedPaused, Category: "video"}}
	if err := repo.Record(ctx, "evt-9", "manual_action", "", outcomes); err != nil {
		t.Fatalf("Record: %v", err)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].FieldID != "" {
		t.Fatalf("List = %+v", result.Entries)
	}
}

func TestListFilters(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	seed := []*Entry{
		{EventID: "e1", EventType: "matchStarted", FieldID: "1",
			Outcomes:  []automation.Outcome{{Status: automation.StatusSuccess}},
			CreatedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)},
		{EventID: "e2", EventType: "matchStopped", FieldID: "1",
			Outcomes:  []automation.Outcome{{Status: automation.StatusFailure}},
			CreatedAt: time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC)},
		{EventID: "e3", EventType: "matchStarted", FieldID: "2",
			Outcomes:  []automation.Outcome{{Status: automation.StatusSkippedPaused}},
			CreatedAt: time.Date(2026, 3, 14, 10, 10, 0, 0, time.UTC)},
		{EventID: "e4", EventType: "match_scheduled", FieldID: "",
			Outcomes:  []automation.Outcome{{Status: automation.StatusDeferred}},
			CreatedAt: time.Date(2026, 3, 14, 10, 15, 0, 0, time.UTC)},
	}
	for _, e := range seed {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create %s: %v", e.EventID, err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"by event type", Filter{EventType: "matchStarted"}, []string{"e3", "e1"}},
		{"by field", Filter{FieldID: "1"}, []string{"e2", "e1"}},
		{"by status", Filter{Status: automation.StatusFailure}, []string{"e2"}},
		{"status matches whole value", Filter{Status: automation.StatusDeferred}, []string{"e4"}},
		{"status prefix does not match", Filter{Status: "defer"}, nil},
		{"combined", Filter{EventType: "matchStarted", FieldID: "2"}, []string{"e3"}},
		{"no filter newest first", Filter{}, []string{"e4", "e3", "e2", "e1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(result.Entries) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(result.Entries), len(tt.want))
			}
			for i, want := range tt.want {
				if result.Entries[i].EventID != want {
					t.Errorf("entries[%d] = %s, want %s", i, result.Entries[i].EventID, want)
				}
			}
		})
	}
}

func TestListPagination(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		e := &Entry{
			EventID:   "e",
			EventType: "matchStarted",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 5 || len(result.Entries) != 2 {
		t.Errorf("List = total %d, page %d", result.Total, len(result.Entries))
	}
}
