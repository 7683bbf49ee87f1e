// Package views holds the derived display views: upcoming scheduled
// matches and active popups. Both are JSON files written only by the event
// processor and served read-only to display clients.
//
// Entries are time-bounded. A periodic sweep evicts scheduled matches once
// their start time is older than a grace period and removes popups whose
// validity window has passed. Files are replaced atomically.
package views
