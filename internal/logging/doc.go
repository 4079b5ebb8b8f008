// Package logging assembles the structured slog loggers used across RedShift.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and standardizes field keys so every subsystem emits the same shape. A
// no-op logger is provided for tests and wiring code that cannot fail.
package logging
