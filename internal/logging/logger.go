// Package logging defines the structured-logging interface used by the
// session, agent and ledger layers, with a log/slog backed implementation.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are key–value pairs, e.g.:
//
//	log.Info(ctx, "agent ready", "host", host, "principal", p.Text())
type Logger interface {
	// Debug logs call-level detail (request ids, retries).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs session lifecycle events.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs degraded but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs failures surfaced to the caller.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
