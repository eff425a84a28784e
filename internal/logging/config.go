package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// GetLogLevel returns the log level based on the LOG_LEVEL environment variable.
// If LOG_LEVEL is not set or invalid, it defaults to Info level.
//
// Supported values (case-insensitive):
//   - DEBUG: slog.LevelDebug
//   - INFO: slog.LevelInfo
//   - WARN or WARNING: slog.LevelWarn
//   - ERROR: slog.LevelError
//
// Default: slog.LevelInfo
func GetLogLevel() slog.Level {
	levelStr := strings.ToUpper(strings.TrimSpace(os.Getenv("LOG_LEVEL")))

	switch levelStr {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		// Default to Info if not set or invalid
		return slog.LevelInfo
	}
}

// NewLogger returns a JSON logger writing to w at the LOG_LEVEL level,
// tagged with the function it serves.
func NewLogger(w io.Writer, handler string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: GetLogLevel(),
	}))
	if handler != "" {
		logger = logger.With(slog.String("handler", handler))
	}
	return logger
}

// Setup installs a stdout JSON logger as the slog default and returns it
func Setup(handler string) *slog.Logger {
	logger := NewLogger(os.Stdout, handler)
	slog.SetDefault(logger)
	return logger
}
