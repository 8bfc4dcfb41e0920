// internal/logging/logging.go

// Package logging routes slog to a file. The TUI owns the terminal, so
// nothing may write to stdout or stderr while it runs.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Setup opens the log file and installs it as the slog default.
func Setup(path, level string) (func() error, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	handler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: ParseLevel(level)})
	slog.SetDefault(slog.New(handler))
	return file.Close, nil
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
