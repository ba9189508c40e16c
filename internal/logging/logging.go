// Package logging provides the structured logger shared by the settings
// registry components.
//
// Components accept a *Logger through their options and fall back to Nop()
// so that tests and embedders that do not care about diagnostics pay nothing.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Level is the severity level of a log message.
type Level = log.Level

// Log levels, lowest to highest.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// ParseLevel parses a level name. Unknown names yield LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Config configures a Logger.
type Config struct {
	// Level is the minimum level written.
	Level Level
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Prefix is prepended to every line.
	Prefix string
	// JSON switches to the JSON formatter.
	JSON bool
	// Timestamps enables timestamps on every line.
	Timestamps bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Output:     os.Stderr,
		Prefix:     "sinconfig",
		Timestamps: true,
	}
}

// Logger provides leveled, key/value structured logging.
type Logger struct {
	l *log.Logger
}

// New creates a logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := log.Options{
		Level:           cfg.Level,
		Prefix:          cfg.Prefix,
		ReportTimestamp: cfg.Timestamps,
		TimeFormat:      time.TimeOnly,
	}
	if cfg.JSON {
		opts.Formatter = log.JSONFormatter
	}
	return &Logger{l: log.NewWithOptions(cfg.Output, opts)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{l: log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// WithField returns a child logger that always carries key=value.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{l: l.l.With(key, value)}
}

// WithComponent returns a child logger tagged with the component name.
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// SetLevel sets the minimum level.
func (l *Logger) SetLevel(level Level) {
	l.l.SetLevel(level)
}

// Level returns the minimum level.
func (l *Logger) Level() Level {
	return l.l.GetLevel()
}

// Debug logs a debug message with key/value pairs.
func (l *Logger) Debug(msg string, keyvals ...any) {
	l.l.Debug(msg, keyvals...)
}

// Info logs an info message with key/value pairs.
func (l *Logger) Info(msg string, keyvals ...any) {
	l.l.Info(msg, keyvals...)
}

// Warn logs a warning with key/value pairs.
func (l *Logger) Warn(msg string, keyvals ...any) {
	l.l.Warn(msg, keyvals...)
}

// Error logs an error with key/value pairs.
func (l *Logger) Error(msg string, keyvals ...any) {
	l.l.Error(msg, keyvals...)
}
