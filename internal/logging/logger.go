// Package logging provides structured logging configuration using log/slog.
//
// Import runs execute as standalone worker processes, so log correlation
// happens on run and upload identifiers rather than request ids: use
// ForRun to obtain a logger that carries both through the whole run.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Use "json" format in production for machine parsing (ELK, CloudWatch, etc.)
// Use "text" format in development for human readability.
func Setup(level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
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

// ForRun returns a logger that includes run_id and upload_id in all entries.
//
// Usage:
//
//	log := logging.ForRun(runID, uploadID)
//	log.Info("import started", "manufacturer", slug)
//	// ... later ...
//	log.Info("import finished", "rows", seen)
func ForRun(runID, uploadID int64) *slog.Logger {
	return slog.Default().With("run_id", runID, "upload_id", uploadID)
}
