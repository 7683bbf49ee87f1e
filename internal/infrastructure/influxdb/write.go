package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEventMetric records processing telemetry for a single handled event.
//
// Measurement: event_processed. Tags identify the event type and field so
// dashboards can break latency down per cue source. The write is
// non-blocking; errors surface via the SetOnError callback.
func (c *Client) WriteEventMetric(eventType, fieldID string, durationMS float64, actionsRun, actionsFailed int) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	p := write.NewPoint(
		"event_processed",
		map[string]string{
			"event_type": eventType,
			"field_id":   fieldID,
		},
		map[string]interface{}{
			"duration_ms":    durationMS,
			"actions_run":    actionsRun,
			"actions_failed": actionsFailed,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(p)

	return nil
}

// WriteActionMetric records the outcome of a single dispatched action.
//
// Measurement: action_dispatched. Status matches the audit outcome
// vocabulary (success, failure, skipped-paused).
func (c *Client) WriteActionMetric(category, target, status string, attempts int, durationMS float64) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	p := write.NewPoint(
		"action_dispatched",
		map[string]string{
			"category": category,
			"target":   target,
			"status":   status,
		},
		map[string]interface{}{
			"attempts":    attempts,
			"duration_ms": durationMS,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(p)

	return nil
}

// WriteQueueMetric records event queue depth, sampled on the sweep tick.
func (c *Client) WriteQueueMetric(depth, capacity int) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	p := write.NewPoint(
		"event_queue",
		map[string]string{},
		map[string]interface{}{
			"depth":    depth,
			"capacity": capacity,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(p)

	return nil
}
