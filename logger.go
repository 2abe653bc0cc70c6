package gfx

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that the
// present goroutine can log while SetLogger runs elsewhere.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for gfx and all its sub-packages.
// By default, gfx produces no log output. Pass nil to restore silence.
//
// Log levels used by gfx:
//   - [slog.LevelDebug]: replay diagnostics (skipped draws, mirror rebuilds)
//   - [slog.LevelInfo]: lifecycle events (backend opened, present loop started)
//   - [slog.LevelWarn]: non-fatal issues (device errors, lost surfaces,
//     stereo fallback)
//
// Example:
//
//	gfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Sub-packages (replay, present,
// backend/...) call it so that one SetLogger call configures them all.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
