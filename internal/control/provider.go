package control

import (
	"log/slog"
	"sync/atomic"
)

// Logger is the logging interface used by this package.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

var _ Logger = (*slog.Logger)(nil)

// Provider holds the active operational configuration and swaps snapshots
// atomically. Callers take one snapshot per decision via Current; in-flight
// work keeps its captured snapshot through a reload.
type Provider struct {
	path    string
	current atomic.Pointer[Config]
	logger  Logger
}

// NewProvider loads the config file at path and returns a provider serving
// it. A missing or invalid file is an error at startup.
func NewProvider(path string, logger Logger) (*Provider, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	p := &Provider{path: path, logger: logger}
	p.current.Store(cfg)

	return p, nil
}

// Current returns the active snapshot. The returned config must be treated
// as read-only.
func (p *Provider) Current() *Config {
	return p.current.Load()
}

// Path returns the file the provider reads from.
func (p *Provider) Path() string {
	return p.path
}

// Reload constructs a new snapshot from the file and swaps it in. On any
// failure the previous snapshot stays active and the error is returned.
func (p *Provider) Reload() error {
	cfg, err := loadFile(p.path)
	if err != nil {
		p.logger.Error("control config reload failed, keeping previous snapshot",
			"path", p.path, "error", err)
		return err
	}

	p.current.Store(cfg)
	p.logger.Info("control config reloaded",
		"path", p.path,
		"lead_matches", cfg.ScheduleLeadMatches,
		"rooms", len(cfg.Rooms))

	return nil
}
