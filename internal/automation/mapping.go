package automation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
)

// RuleSet maps "all" or a specific field ID to an ordered action list.
type RuleSet map[string][]Action

// Mapping is the loaded action-mapping model: one table keyed by event
// type, one keyed by "old->new" transition strings.
type Mapping struct {
	OnEvent       map[string]RuleSet `json:"on_event"`
	OnStateChange map[string]RuleSet `json:"on_state_change"`
}

// RuleKeyAll applies a rule list to every field.
const RuleKeyAll = "all"

func (m *Mapping) validate() error {
	for key, rules := range m.OnEvent {
		if err := validateRules("on_event", key, rules); err != nil {
			return err
		}
	}
	for key, rules := range m.OnStateChange {
		if err := validateRules("on_state_change", key, rules); err != nil {
			return err
		}
	}
	return nil
}

func validateRules(table, key string, rules RuleSet) error {
	for target, actions := range rules {
		for i, a := range actions {
			if err := a.Validate(); err != nil {
				return fmt.Errorf("%s.%s.%s[%d]: %w", table, key, target, i, err)
			}
		}
	}
	return nil
}

func loadMappingFile(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("automation: read mapping file: %w", err)
	}

	m := &Mapping{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("automation: parse mapping file: %w", err)
	}
	if m.OnEvent == nil {
		m.OnEvent = map[string]RuleSet{}
	}
	if m.OnStateChange == nil {
		m.OnStateChange = map[string]RuleSet{}
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("automation: %w", err)
	}

	return m, nil
}

// MappingProvider holds the active mapping behind an atomic pointer.
// Reload builds a complete new model and swaps it; a failed reload keeps
// the previous mapping active.
type MappingProvider struct {
	path    string
	current atomic.Pointer[Mapping]
	logger  Logger
}

// NewMappingProvider loads the mapping file at path. An absent file yields
// an empty mapping (no actions fire), matching first-run behaviour; a
// present but malformed file is an error.
func NewMappingProvider(path string, logger Logger) (*MappingProvider, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	p := &MappingProvider{path: path, logger: logger}

	m, err := loadMappingFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("mapping file not found, no actions will fire", "path", path)
			m = &Mapping{OnEvent: map[string]RuleSet{}, OnStateChange: map[string]RuleSet{}}
		} else {
			return nil, err
		}
	}
	p.current.Store(m)

	return p, nil
}

// Current returns the active mapping. Read-only.
func (p *MappingProvider) Current() *Mapping {
	return p.current.Load()
}

// Path returns the file the provider reads from.
func (p *MappingProvider) Path() string {
	return p.path
}

// Reload re-reads the mapping file and swaps it in atomically. The previous
// mapping stays active on failure.
func (p *MappingProvider) Reload() error {
	m, err := loadMappingFile(p.path)
	if err != nil {
		p.logger.Error("mapping reload failed, keeping previous mapping",
			"path", p.path, "error", err)
		return err
	}

	p.current.Store(m)
	p.logger.Info("action mappings reloaded",
		"path", p.path,
		"on_event", len(m.OnEvent),
		"on_state_change", len(m.OnStateChange))

	return nil
}
