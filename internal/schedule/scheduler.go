package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/stagecue/stagecue-core/internal/automation"
	"github.com/stagecue/stagecue-core/internal/control"
	"github.com/stagecue/stagecue-core/internal/event"
	"github.com/stagecue/stagecue-core/internal/field"
)

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

var _ Logger = (*slog.Logger)(nil)

// EventSink accepts scheduler-produced events. The bounded queue satisfies
// it; a full queue is a backpressure signal, not an error.
type EventSink interface {
	TryEnqueue(e event.Event) error
}

// ConfigSource provides the active operational config snapshot.
type ConfigSource interface {
	Current() *control.Config
}

// Scheduler periodically scans the fetched schedule and emits one
// match_scheduled event per upcoming match, exactly once per match and
// schedule version.
type Scheduler struct {
	schedulePath string
	queue        EventSink
	config       ConfigSource
	fields       *field.Store
	notified     NotifiedRepository
	interval     time.Duration
	logger       Logger
}

// NewScheduler creates a match scheduler.
func NewScheduler(schedulePath string, queue EventSink, config ConfigSource, fields *field.Store, notified NotifiedRepository, interval time.Duration, logger Logger) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Scheduler{
		schedulePath: schedulePath,
		queue:        queue,
		config:       config,
		fields:       fields,
		notified:     notified,
		interval:     interval,
		logger:       logger,
	}
}

// Run checks the schedule on an interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("match scheduler started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("match scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Check(ctx); err != nil {
				s.logger.Error("schedule check failed", "error", err)
			}
		}
	}
}

// Check performs one scheduling pass: compute each upcoming match's ordinal
// distance from the last played match in its division and emit a
// notification the first time that distance falls inside the lead window.
// During the quiet window nothing is emitted or marked; the notification
// fires on a later tick once the window ends.
func (s *Scheduler) Check(ctx context.Context) error {
	cfg := s.config.Current()

	if cfg.MatchQueuePause.Active(time.Now().UTC()) {
		s.logger.Debug("scheduling pass skipped, quiet window active")
		return nil
	}

	sched, err := Load(s.schedulePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("no schedule file yet", "path", s.schedulePath)
			return nil
		}
		return err
	}

	inCycle, err := s.matchesInCycle()
	if err != nil {
		return fmt.Errorf("deriving played matches: %w", err)
	}

	lead := cfg.ScheduleLeadMatches
	if lead <= 0 {
		return nil
	}

	for _, div := range sched.Divisions {
		lastPlayed := -1
		for i, m := range div.Matches {
			if inCycle[m.ID] {
				lastPlayed = i
			}
		}

		for i := lastPlayed + 1; i < len(div.Matches) && i <= lastPlayed+lead; i++ {
			m := div.Matches[i]

			seen, err := s.notified.Seen(ctx, m.ID, sched.Version)
			if err != nil {
				return fmt.Errorf("checking notified set: %w", err)
			}
			if seen {
				continue
			}

			if err := s.emit(ctx, div, m, sched.Version, cfg); err != nil {
				if errors.Is(err, event.ErrQueueFull) {
					// Backpressure: leave the pair unmarked and try
					// again on the next tick.
					s.logger.Warn("event queue full, deferring notifications")
					return nil
				}
				return err
			}
		}
	}

	return nil
}

// matchesInCycle returns the IDs of matches currently assigned to a field
// in any in-cycle state. These anchor each division's "last played" ordinal.
func (s *Scheduler) matchesInCycle() (map[string]bool, error) {
	states, err := s.fields.List()
	if err != nil {
		return nil, err
	}

	inCycle := make(map[string]bool)
	for _, st := range states {
		if st.MatchID != "" && st.State.InMatchCycle() {
			inCycle[st.MatchID] = true
		}
	}
	return inCycle, nil
}

// emit enqueues one match_scheduled event and marks the pair notified.
func (s *Scheduler) emit(ctx context.Context, div Division, m Match, version string, cfg *control.Config) error {
	name := m.Name
	if name == "" {
		name = automation.FormatMatchName(map[string]any{
			"round": m.Round,
			"match": float64(m.Number),
		})
	}

	payload := map[string]any{
		"match_id":    m.ID,
		"division_id": div.ID,
		"match_name":  name,
		"teams":       m.Teams,
		"field_id":    m.FieldID,
	}
	if !m.ScheduledTime.IsZero() {
		payload["scheduled_time"] = m.ScheduledTime.Format(time.RFC3339)
	}

	if rooms := cfg.RoomsForTeams(m.Teams); len(rooms) > 0 {
		payload["room_ids"] = rooms
		payload["title"] = "Upcoming Match: " + name
		payload["message"] = "Teams: " + strings.Join(m.Teams, ", ")
	}

	ev := event.New(event.TypeMatchScheduled, "", payload)
	if err := s.queue.TryEnqueue(ev); err != nil {
		return err
	}

	if err := s.notified.Mark(ctx, m.ID, version); err != nil {
		return fmt.Errorf("marking notified match: %w", err)
	}

	s.logger.Info("match notification emitted",
		"match_id", m.ID,
		"division_id", div.ID,
		"match_name", name,
		"schedule_version", version,
	)

	return nil
}
