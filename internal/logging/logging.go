// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var levelVar slog.LevelVar

// Init installs a text handler writing to w (stdout when nil) as the default
// logger and sets its level. Accepts: debug, info, warn/warning, error.
func Init(w io.Writer, level string) (*slog.Logger, error) {
	if w == nil {
		w = os.Stdout
	}
	if err := SetLevelString(level); err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar}))
	slog.SetDefault(logger)
	return logger, nil
}

// SetLevelString parses and sets the logging level.
func SetLevelString(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "", "info":
		levelVar.Set(slog.LevelInfo)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %s", level)
	}
	return nil
}

// Named returns the default logger tagged with a component name.
func Named(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
