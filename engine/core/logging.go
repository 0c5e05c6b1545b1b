package core

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// LogConfig controls how a Logger is built.
type LogConfig struct {
	Level        string `toml:"level"`
	ReportCaller bool   `toml:"report_caller"`
	Prefix       string `toml:"-"`
}

// Logger is the process-wide logging service. It is built once at startup
// and handed to every subsystem that needs to log; nothing reaches for a
// global instance.
type Logger struct {
	*log.Logger
}

func NewLogger(w io.Writer, cfg LogConfig) *Logger {
	if w == nil {
		w = os.Stderr
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "Novus 📦"
	}
	l := log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.ReportCaller,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          prefix,
	})
	lg := &Logger{l}
	if err := lg.SetLevelString(cfg.Level); err != nil {
		l.SetLevel(log.InfoLevel)
		l.Warnf("unknown log level %q, falling back to info", cfg.Level)
	}
	return lg
}

// NopLogger discards everything. Used by tests and by components built
// without a logger.
func NopLogger() *Logger {
	l := log.NewWithOptions(io.Discard, log.Options{})
	l.SetLevel(log.FatalLevel)
	return &Logger{l}
}

// SetLevelString parses and applies a level such as "debug" or "warn".
// An empty string selects the debug level.
func (l *Logger) SetLevelString(level string) error {
	if level == "" {
		l.SetLevel(log.DebugLevel)
		return nil
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	l.SetLevel(lvl)
	return nil
}

// With returns a sub-logger carrying the given key/value pairs on every line.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{l.Logger.With(keyvals...)}
}

// OrNop lets constructors accept a nil logger.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return NopLogger()
	}
	return l
}
