package logging

import (
	"io"
	"log/slog"
)

// New returns a JSON line logger writing to w, one record per event.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})).
		With("logger", "metrics_scraper")
}
