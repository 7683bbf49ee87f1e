package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NotifiedRepository is the remembered set of notifications already
// emitted, keyed by match ID plus schedule version. Persisted so restarts
// never re-notify.
type NotifiedRepository interface {
	Seen(ctx context.Context, matchID, version string) (bool, error)
	Mark(ctx context.Context, matchID, version string) error
}

// SQLiteNotified stores the notified set in SQLite.
type SQLiteNotified struct {
	db *sql.DB
}

// NewSQLiteNotified creates the repository.
func NewSQLiteNotified(db *sql.DB) *SQLiteNotified {
	return &SQLiteNotified{db: db}
}

// Seen reports whether the (match, version) pair was already notified.
func (r *SQLiteNotified) Seen(ctx context.Context, matchID, version string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM notified_matches WHERE match_id = ? AND schedule_version = ?`,
		matchID, version,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying notified set: %w", err)
	}
	return true, nil
}

// Mark records the pair. Marking an already-marked pair is a no-op.
func (r *SQLiteNotified) Mark(ctx context.Context, matchID, version string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notified_matches (match_id, schedule_version, notified_at) VALUES (?, ?, ?)`,
		matchID, version, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("marking notified match: %w", err)
	}
	return nil
}
