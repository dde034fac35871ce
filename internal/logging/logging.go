// Package logging configures the process-wide slog logger: JSON for
// production, tinted human-readable output for local development.
package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Setup builds a logger for the given format and level and installs it as the
// slog default. Unknown values fall back to JSON at info.
func Setup(format, level string) *slog.Logger {
	var handler slog.Handler
	switch format {
	case "pretty":
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      parseLevel(level),
			TimeFormat: time.TimeOnly,
		})
	default:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(level),
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
