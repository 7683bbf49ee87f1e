// Package schedule implements the match scheduler: it scans the externally
// fetched schedule, derives each division's last played match from the
// canonical field states, and emits match_scheduled events for matches
// entering the configured lead window.
//
// Notifications are idempotent per (match ID, schedule version) pair,
// remembered in SQLite so restarts and schedule reloads never re-notify.
// When the queue applies backpressure the pair stays unmarked and the
// notification retries on the next tick.
package schedule
