// Package audit provides the append-only record of processed events and
// their per-action outcomes. The processing path only writes; reads serve
// operator review over the API.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stagecue/stagecue-core/internal/automation"
)

// Entry is one processed event with its action outcomes.
type Entry struct {
	ID        string               `json:"id"`
	EventID   string               `json:"event_id"`
	EventType string               `json:"event_type"`
	FieldID   string               `json:"field_id,omitempty"`
	Outcomes  []automation.Outcome `json:"outcomes"`
	CreatedAt time.Time            `json:"created_at"`
}

// Filter controls which audit entries to return.
type Filter struct {
	EventType string // optional: filter by event type
	FieldID   string // optional: filter by field
	Status    string // optional: entries containing an outcome with this status
	Limit     int    // default 50, max 200
	Offset    int    // pagination offset
}

// ListResult contains the paginated audit results.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the interface for audit operations.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository persists audit entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new audit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record satisfies the processor's audit contract, appending one entry per
// processed event.
func (r *SQLiteRepository) Record(ctx context.Context, eventID, eventType, fieldID string, outcomes []automation.Outcome) error {
	return r.Create(ctx, &Entry{
		EventID:   eventID,
		EventType: eventType,
		FieldID:   fieldID,
		Outcomes:  outcomes,
	})
}

// Create inserts an audit entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "aud-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	outcomesJSON, err := json.Marshal(entry.Outcomes)
	if err != nil {
		return fmt.Errorf("marshalling outcomes: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, event_id, event_type, field_id, outcomes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.EventID, entry.EventType,
		nullableString(entry.FieldID), string(outcomesJSON),
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns audit entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.EventType != "" {
		conditions = append(conditions, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.FieldID != "" {
		conditions = append(conditions, "field_id = ?")
		args = append(args, filter.FieldID)
	}
	if filter.Status != "" {
		// Outcomes are a JSON array; a status filter matches entries
		// containing at least one outcome with exactly that status.
		conditions = append(conditions,
			`EXISTS (SELECT 1 FROM json_each(outcomes) WHERE json_extract(json_each.value, '$.status') = ?)`)
		args = append(args, filter.Status)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_entries %s", where)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT id, event_id, event_type, field_id, outcomes, created_at FROM audit_entries %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var fieldID sql.NullString
		var outcomesJSON string
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.EventID, &entry.EventType,
			&fieldID, &outcomesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		if fieldID.Valid {
			entry.FieldID = fieldID.String
		}
		if outcomesJSON != "" {
			if err := json.Unmarshal([]byte(outcomesJSON), &entry.Outcomes); err != nil {
				return nil, fmt.Errorf("decoding outcomes for %s: %w", entry.ID, err)
			}
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
		}
		entry.CreatedAt = t

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
