package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/stagecue/stagecue-core/internal/automation"
	"github.com/stagecue/stagecue-core/internal/infrastructure/mqtt"
)

// Publisher is the subset of the MQTT client the dispatchers need.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

var _ Logger = (*slog.Logger)(nil)

// MQTTDispatcher executes actions for one device category by publishing
// command messages to that category's bridge topic. Transient publish
// failures are retried per the action's policy; the final result is
// reported as an outcome, never an error.
type MQTTDispatcher struct {
	category  string
	publisher Publisher
	qos       byte
	logger    Logger
}

// NewMQTTDispatcher creates a dispatcher for one category.
func NewMQTTDispatcher(category string, publisher Publisher, qos byte, logger Logger) *MQTTDispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTDispatcher{
		category:  category,
		publisher: publisher,
		qos:       qos,
		logger:    logger,
	}
}

// commandPayload is the wire shape published to device bridges.
type commandPayload struct {
	ID       string                  `json:"id"`
	Category string                  `json:"category"`
	Lighting *automation.LightingCue `json:"lighting,omitempty"`
	Video    *automation.VideoCue    `json:"video,omitempty"`
	Audio    *automation.AudioCue    `json:"audio,omitempty"`
	Source   string                  `json:"source"`
}

// Execute publishes the action's command, retrying per its policy. The
// returned outcome carries the attempt count and the last error on failure.
func (d *MQTTDispatcher) Execute(ctx context.Context, action automation.Action) automation.Outcome {
	start := time.Now()

	outcome := automation.Outcome{
		ActionID: action.ID,
		Category: action.Category,
	}

	if err := action.Validate(); err != nil {
		outcome.Status = automation.StatusFailure
		outcome.Error = err.Error()
		return outcome
	}

	payload, err := json.Marshal(commandPayload{
		ID:       action.ID,
		Category: action.Category,
		Lighting: action.Lighting,
		Video:    action.Video,
		Audio:    action.Audio,
		Source:   "stagecue-core",
	})
	if err != nil {
		outcome.Status = automation.StatusFailure
		outcome.Error = err.Error()
		return outcome
	}

	topic := mqtt.Topics{}.Command(d.category, action.Target())
	policy := action.Retry.Normalized()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		outcome.Attempts = attempt

		lastErr = d.publishOnce(ctx, topic, payload, policy.Timeout())
		if lastErr == nil {
			outcome.Status = automation.StatusSuccess
			outcome.DurationMS = float64(time.Since(start).Microseconds()) / 1000
			d.logger.Debug("action published",
				"action_id", action.ID,
				"category", d.category,
				"topic", topic,
				"attempts", attempt,
			)
			return outcome
		}

		d.logger.Warn("action publish attempt failed",
			"action_id", action.ID,
			"category", d.category,
			"attempt", attempt,
			"error", lastErr,
		)

		if attempt < policy.MaxAttempts {
			select {
			case <-time.After(policy.Backoff()):
			case <-ctx.Done():
				outcome.Status = automation.StatusFailure
				outcome.Error = ctx.Err().Error()
				outcome.DurationMS = float64(time.Since(start).Microseconds()) / 1000
				return outcome
			}
		}
	}

	outcome.Status = automation.StatusFailure
	outcome.Error = lastErr.Error()
	outcome.DurationMS = float64(time.Since(start).Microseconds()) / 1000

	d.logger.Error("action dispatch failed",
		"action_id", action.ID,
		"category", d.category,
		"attempts", outcome.Attempts,
		"error", lastErr,
	)

	return outcome
}

// publishOnce runs a single publish attempt under its own deadline. The
// MQTT client blocks internally, so the attempt runs in a goroutine and
// the deadline bounds how long the dispatcher waits for it.
func (d *MQTTDispatcher) publishOnce(ctx context.Context, topic string, payload []byte, timeout time.Duration) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- d.publisher.Publish(topic, payload, d.qos, false)
	}()

	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		return attemptCtx.Err()
	}
}

// ForCategories builds one dispatcher per device category sharing a
// publisher, keyed the way the engine expects.
func ForCategories(publisher Publisher, qos byte, logger Logger) map[string]automation.Dispatcher {
	return map[string]automation.Dispatcher{
		automation.CategoryLighting: NewMQTTDispatcher(automation.CategoryLighting, publisher, qos, logger),
		automation.CategoryVideo:    NewMQTTDispatcher(automation.CategoryVideo, publisher, qos, logger),
		automation.CategoryAudio:    NewMQTTDispatcher(automation.CategoryAudio, publisher, qos, logger),
	}
}
