// Package database provides SQLite connection management for StageCue Core.
//
// It handles connection setup (WAL mode, busy timeout, single-writer pool),
// embedded schema migrations, and health checks. The audit repository and
// the scheduler's notified-matches set are the primary consumers.
package database
