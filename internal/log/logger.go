// Package log sets up the process-wide slog default and hands out
// component-scoped loggers.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a text handler on slog's default logger. The level comes
// from LOG_LEVEL (debug, info, warn, error); anything else means info.
func Setup() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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

// ForComponent returns a logger carrying the component attribute, so lines
// from the ledger API, the AMQP bridge and the export worker can be told
// apart in a merged stream.
func ForComponent(component string) *slog.Logger {
	return slog.Default().With(FieldComponent, component)
}
