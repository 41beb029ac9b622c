// Package trace provides the structured-logging helper used across the
// simulator: a custom slog level for architectural trace events, above
// slog.LevelInfo, following the teacher's core.LevelTrace/core.Trace.
package trace

import (
	"context"
	"log/slog"
)

// Level is the custom slog level for architectural trace events —
// per-instruction fetch/dispatch, CTRL writes, syscall chunking — noisier
// than Info but not meant to compete with Warn/Error severities.
const Level slog.Level = slog.LevelInfo + 1

// Trace logs msg at Level with args, mirroring the teacher's core.Trace so
// call sites read the same way regardless of which package they're in.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), Level, msg, args...)
}
