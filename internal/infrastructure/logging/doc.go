// Package logging provides structured logging for StageCue Core.
//
// It wraps log/slog with service defaults: configurable level and format,
// and service/version attributes on every record. Domain packages should
// not import this package directly for their dependencies; they declare a
// small local Logger interface and accept anything that satisfies it.
package logging
