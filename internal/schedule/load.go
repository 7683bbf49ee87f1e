package schedule

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// Load reads the schedule file and returns it with its version. A file
// without an explicit version gets one derived from its content, so any
// edit produces a new version.
func Load(path string) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schedule: read schedule file: %w", err)
	}

	var s Schedule
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("schedule: parse schedule file: %w", err)
	}

	if s.Version == "" {
		sum := sha256.Sum256(data)
		s.Version = hex.EncodeToString(sum[:])[:12]
	}

	for _, div := range s.Divisions {
		if div.ID == "" {
			return nil, fmt.Errorf("schedule: %w: division missing id", ErrInvalidSchedule)
		}
		for i, m := range div.Matches {
			if m.ID == "" {
				return nil, fmt.Errorf("schedule: %w: division %s match %d missing id", ErrInvalidSchedule, div.ID, i)
			}
		}
	}

	return &s, nil
}
