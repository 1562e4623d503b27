package logger

import "log/slog"

// NewNope returns a logger that discards everything. Library packages use
// it when no logger is configured.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
