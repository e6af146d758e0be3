// Package bootstrap builds the process-level dependencies shared by reminderd
// and remindctl: the structured logger, the AWS config and the reminder
// notifier selected by REMINDER_NOTIFIER.
package bootstrap

import (
	"io"
	"log/slog"

	"carwash/internal/types"
)

// NewLogger creates a JSON slog.Logger writing to w at the given level.
// Unknown levels fall back to info.
func NewLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

// SlogAdapter wraps *slog.Logger to implement types.Logger. slog.Logger has
// Info, Error and Warn already, but its With returns *slog.Logger.
type SlogAdapter struct {
	Logger *slog.Logger
}

var _ types.Logger = SlogAdapter{}

func (a SlogAdapter) Info(msg string, args ...any)  { a.Logger.Info(msg, args...) }
func (a SlogAdapter) Error(msg string, args ...any) { a.Logger.Error(msg, args...) }
func (a SlogAdapter) Warn(msg string, args ...any)  { a.Logger.Warn(msg, args...) }
func (a SlogAdapter) With(args ...any) types.Logger {
	return SlogAdapter{Logger: a.Logger.With(args...)}
}
