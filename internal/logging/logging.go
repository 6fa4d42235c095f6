// Package logging configures the process-wide slog logger. Output goes to
// stderr so log lines never interleave with the inline TUI on stdout.
package logging

import (
	"log/slog"
	"os"
)

// Init installs the default logger. The level comes from LOG_LEVEL;
// sessions run quiet by default so the live view stays readable.
func Init() {
	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: levelFromEnv(),
		}),
	)
	slog.SetDefault(logger)
}

func levelFromEnv() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
