// Package logging provides leveled logging for foragen on top of zerolog.
//
// The CLI configures a console logger once with Init. Long-running
// components (orchestrator, store) log through a *Logger, which may also be
// backed by a debug log file under the project's .foragen/logs directory.
// A nil *Logger is valid and discards everything.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a configured level name to a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// Init configures the global console logger.
func Init(level string, out io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if out == nil {
		out = os.Stderr
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
	return nil
}

// Logger is a component logger with an optional backing file.
type Logger struct {
	mu   sync.Mutex
	zl   zerolog.Logger
	file *os.File
}

// New wraps the given zerolog logger.
func New(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// Global returns a Logger writing through the global console logger.
func Global(component string) *Logger {
	return &Logger{zl: log.Logger.With().Str("component", component).Logger()}
}

// NewDebugLogger creates a logger writing JSON lines to the specified path.
// If the path is empty, returns a no-op logger.
// Creates parent directories if they don't exist.
func NewDebugLogger(logPath string) (*Logger, error) {
	if logPath == "" {
		return NopLogger(), nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &Logger{
		zl:   zerolog.New(f).Level(zerolog.DebugLevel).With().Timestamp().Logger(),
		file: f,
	}
	l.Debugf("=== debug log started at %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// NewDebugLoggerForProject creates a debug logger in the project's
// .foragen/logs directory. Returns a no-op logger if it cannot be created.
func NewDebugLoggerForProject(projectRoot string) *Logger {
	l, err := NewDebugLogger(filepath.Join(projectRoot, ".foragen", "logs", "orchestrator-debug.log"))
	if err != nil {
		return NopLogger()
	}
	return l
}

// NopLogger returns a logger that discards everything.
func NopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying an extra string field.
func (l *Logger) With(key, value string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{zl: l.zl.With().Str(key, value).Logger(), file: l.file}
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl.Debug().Msgf(format, args...)
}

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl.Info().Msgf(format, args...)
}

// Warn logs a warning with an optional error.
func (l *Logger) Warn(err error, msg string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl.Warn().Err(err).Msg(msg)
}

// Error logs an error.
func (l *Logger) Error(err error, msg string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl.Error().Err(err).Msg(msg)
}

// Close closes the backing file, if any.
// Safe to call on a nil logger or a logger without a file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
