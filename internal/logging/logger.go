// Package logging is the structured-logging seam shared by the agent and the
// collector. SlogLogger is the only implementation in this module.
package logging

import "context"

// Logger takes a message plus alternating key/value args:
//
//	log.Info(ctx, "snapshot uploaded", "status", code, "bytes", n)
//
// Snapshot plaintext must never be passed as an arg.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that adds args to every record.
	With(args ...any) Logger
}
