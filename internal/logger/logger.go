// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Config selects where and how logs are written.
type Config struct {
	// Format is the default when LOG_FORMAT is unset: "json" or "text".
	Format string
	// File, when set, receives the logs instead of Writer. LOG_FILE
	// overrides it.
	File string
	// Writer defaults to os.Stdout.
	Writer io.Writer
}

// Init initializes the global slog logger from cfg and the LOG_LEVEL,
// LOG_FORMAT and LOG_FILE environment variables. The returned closer releases
// the log file, if one was opened.
func Init(cfg Config) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}

	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	closer := func() error { return nil }

	logFile := cfg.File
	if v := os.Getenv("LOG_FILE"); v != "" {
		logFile = v
	}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			slog.Error("failed to create log directory, using default writer", "file", logFile, "error", err)
		} else {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				slog.Error("failed to open log file, using default writer", "file", logFile, "error", err)
			} else {
				w = f
				closer = f.Close
			}
		}
	}

	format := cfg.Format
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		format = v
	}

	l := slog.New(newHandler(w, format, opts))
	slog.SetDefault(l)
	return l, closer
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// WithConn returns a logger tagged with a fresh connection ID for one
// long-lived connection.
func WithConn(base *slog.Logger) (*slog.Logger, string) {
	if base == nil {
		base = slog.Default()
	}
	id := uuid.Must(uuid.NewV7()).String()
	return base.With("conn_id", id), id
}
