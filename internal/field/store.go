package field

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store persists one JSON file per field under a directory, using the
// temp-write + rename discipline so readers never observe partial content.
// Writes for the same field serialize on a per-field lock.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("field: create state dir: %w", err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) lock(fieldID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[fieldID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[fieldID] = l
	}
	return l
}

func (s *Store) path(fieldID string) string {
	return filepath.Join(s.dir, "field"+fieldID+".json")
}

// Write atomically replaces the state file for st.FieldID.
func (s *Store) Write(st FieldState) error {
	if st.FieldID == "" {
		return fmt.Errorf("%w: missing field id", ErrInvalidState)
	}
	if !st.State.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, st.State)
	}

	l := s.lock(st.FieldID)
	l.Lock()
	defer l.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("field: marshal state for field %s: %w", st.FieldID, err)
	}

	target := s.path(st.FieldID)
	tmp, err := os.CreateTemp(s.dir, "field"+st.FieldID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("field: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("field: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("field: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("field: replace state file: %w", err)
	}

	return nil
}

// Read returns the last committed state for fieldID. A field with no state
// file yet defaults to standby.
func (s *Store) Read(fieldID string) (FieldState, error) {
	l := s.lock(fieldID)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(s.path(fieldID))
	if err != nil {
		if os.IsNotExist(err) {
			return FieldState{
				FieldID: fieldID,
				State:   StateStandby,
			}, nil
		}
		return FieldState{}, fmt.Errorf("field: read state for field %s: %w", fieldID, err)
	}

	var st FieldState
	if err := json.Unmarshal(data, &st); err != nil {
		return FieldState{}, fmt.Errorf("field: decode state for field %s: %w", fieldID, err)
	}

	return st, nil
}

// List returns all persisted field states, sorted by field ID.
func (s *Store) List() ([]FieldState, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("field: list state dir: %w", err)
	}

	var states []FieldState
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "field") || !strings.HasSuffix(name, ".json") {
			continue
		}
		fieldID := strings.TrimSuffix(strings.TrimPrefix(name, "field"), ".json")
		st, err := s.Read(fieldID)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].FieldID < states[j].FieldID
	})

	return states, nil
}

// MostRecentActive returns the active field updated most recently, used to
// attribute field-less display events to the field currently on screen.
func (s *Store) MostRecentActive() (FieldState, bool, error) {
	states, err := s.List()
	if err != nil {
		return FieldState{}, false, err
	}

	var best FieldState
	var found bool
	var bestTime time.Time

	for _, st := range states {
		if st.State != StateActive {
			continue
		}
		if !found || st.LastUpdated.After(bestTime) {
			best = st
			bestTime = st.LastUpdated
			found = true
		}
	}

	return best, found, nil
}
