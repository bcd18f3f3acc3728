// Package logging wraps log/slog behind an InitLogger/Logger pair, so
// the rest of the module never constructs a handler itself.
package logging

import (
	"fmt"
	"log/slog"
	"os"
)

var globalLogger *slog.Logger

// InitLogger configures the package-level logger at level, one of
// "debug", "info", "warn", "error". It also installs the logger as
// slog's process-wide default.
func InitLogger(level string) error {
	var slogLevel slog.Level

	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return fmt.Errorf("logging: invalid log level %q", level)
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slogLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
	return nil
}

// Logger returns the configured logger, or slog.Default() if
// InitLogger has not been called yet.
func Logger() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}
