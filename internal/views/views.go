package views

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ScheduledMatchEntry is a derived display record for an upcoming match,
// consumed read-only by public displays.
type ScheduledMatchEntry struct {
	MatchID       string    `json:"match_id"`
	DivisionID    string    `json:"division_id,omitempty"`
	MatchName     string    `json:"match_name,omitempty"`
	Teams         []string  `json:"teams,omitempty"`
	FieldID       string    `json:"field_id,omitempty"`
	RoomIDs       []string  `json:"room_ids,omitempty"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

// PopupEntry is a time-bounded display notification for one or more rooms.
type PopupEntry struct {
	ID       string    `json:"id"`
	RoomIDs  []string  `json:"room_ids,omitempty"`
	Title    string    `json:"title,omitempty"`
	Message  string    `json:"message"`
	MatchID  string    `json:"match_id,omitempty"`
	Team     string    `json:"team,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	Priority int       `json:"priority,omitempty"`
	Source   string    `json:"source,omitempty"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// Expired reports whether the popup's validity window has passed.
func (p PopupEntry) Expired(now time.Time) bool {
	return now.After(p.End)
}

// fileStore serializes a JSON document to one file with the temp-write +
// rename discipline. One mutex per store: view updates are infrequent and
// always funnel through the event processor.
type fileStore struct {
	mu   sync.Mutex
	path string
}

func (s *fileStore) write(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("views: marshal %s: %w", s.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".view-*.tmp")
	if err != nil {
		return fmt.Errorf("views: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("views: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("views: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("views: replace %s: %w", s.path, err)
	}

	return nil
}

func (s *fileStore) read(v any) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("views: read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("views: decode %s: %w", s.path, err)
	}
	return nil
}

// ScheduledStore is the file-backed scheduled-matches view.
type ScheduledStore struct {
	store fileStore
}

// NewScheduledStore creates a scheduled-matches view persisted at path.
func NewScheduledStore(path string) *ScheduledStore {
	return &ScheduledStore{store: fileStore{path: path}}
}

// Upsert adds or replaces the entry with the same match ID, keeping the
// view sorted by scheduled time.
func (s *ScheduledStore) Upsert(entry ScheduledMatchEntry) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var entries []ScheduledMatchEntry
	if err := s.store.read(&entries); err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].MatchID == entry.MatchID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ScheduledTime.Before(entries[j].ScheduledTime)
	})

	return s.store.write(entries)
}

// List returns all entries currently in the view.
func (s *ScheduledStore) List() ([]ScheduledMatchEntry, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var entries []ScheduledMatchEntry
	if err := s.store.read(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Sweep evicts entries whose scheduled time has passed by more than grace.
// Returns the number of evicted entries.
func (s *ScheduledStore) Sweep(now time.Time, grace time.Duration) (int, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var entries []ScheduledMatchEntry
	if err := s.store.read(&entries); err != nil {
		return 0, err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.ScheduledTime.Before(now.Add(-grace)) {
			continue
		}
		kept = append(kept, e)
	}

	evicted := len(entries) - len(kept)
	if evicted == 0 {
		return 0, nil
	}

	return evicted, s.store.write(kept)
}

// PopupStore is the file-backed popups view.
type PopupStore struct {
	store fileStore
}

// NewPopupStore creates a popups view persisted at path.
func NewPopupStore(path string) *PopupStore {
	return &PopupStore{store: fileStore{path: path}}
}

// Upsert adds or replaces the popup with the same ID.
func (s *PopupStore) Upsert(entry PopupEntry) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var entries []PopupEntry
	if err := s.store.read(&entries); err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	return s.store.write(entries)
}

// List returns the popups still inside their validity window.
func (s *PopupStore) List(now time.Time) ([]PopupEntry, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var entries []PopupEntry
	if err := s.store.read(&entries); err != nil {
		return nil, err
	}

	active := entries[:0]
	for _, e := range entries {
		if !e.Expired(now) {
			active = append(active, e)
		}
	}
	return active, nil
}

// Sweep removes expired popups from the file. Returns the number removed.
func (s *PopupStore) Sweep(now time.Time) (int, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var entries []PopupEntry
	if err := s.store.read(&entries); err != nil {
		return 0, err
	}

	kept := entries[:0]
	for _, e := range entries {
		if !e.Expired(now) {
			kept = append(kept, e)
		}
	}

	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	return removed, s.store.write(kept)
}
