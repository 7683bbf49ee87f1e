// Package influxdb provides time-series telemetry for the dispatch engine.
//
// It wraps the InfluxDB v2 client with batched non-blocking writes for
// per-event processing latency, per-action dispatch outcomes, and queue
// depth samples. Telemetry is optional: when disabled in configuration no
// client is created and callers skip the write paths entirely.
//
// Writes never block the event loop. Batches are flushed on an interval
// and on shutdown; asynchronous write failures are reported through a
// callback registered with SetOnError.
package influxdb
