package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nerrad567/gridlink-core/internal/infrastructure/config"
)

// ServiceName is attached to every log entry as the "service" field.
const ServiceName = "gridlink"

// Logger wraps slog.Logger for GridLink.
//
// Every entry carries service and version fields, plus whatever base
// attributes were passed to New (main adds server_id). Logger satisfies the
// small Debug/Info/Warn/Error interfaces declared by the directory, persist,
// lifecycle and mqtt packages, so components never import slog directly.
//
// All methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New creates a Logger from cfg.
//
// cfg.Output is "stdout", "stderr" or a file path. A file is opened for
// appending and created with its directory if missing; if that fails the
// logger writes to stderr and says so in its first entry.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for the version field
//   - attrs: Extra key/value pairs attached to every entry
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string, attrs ...any) *Logger {
	w, openErr := openOutput(cfg.Output)
	l := NewWithWriter(cfg, version, w, attrs...)
	if openErr != nil {
		l.Warn("log file unavailable, writing to stderr", "output", cfg.Output, "error", openErr)
	}
	return l
}

// NewWithWriter is New with an explicit destination, ignoring cfg.Output.
// Tests use it to capture log entries.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer, attrs ...any) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	base := slog.New(h).With("service", ServiceName, "version", version)
	if len(attrs) > 0 {
		base = base.With(attrs...)
	}
	return &Logger{Logger: base}
}

func openOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
		return os.Stderr, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640) //nolint:gosec // path comes from operator config
	if err != nil {
		return os.Stderr, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// parseLevel converts a string log level to slog.Level.
// Unrecognised levels mean info.
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

// With returns a Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component tags entries with the subsystem that wrote them:
//
//	log.Component("lifecycle").Info("tick") // component=lifecycle
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default creates a logger for use before configuration is loaded: JSON to
// stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
