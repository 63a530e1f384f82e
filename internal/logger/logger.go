package logger

import (
	"fmt"
	"gopkg.in/natefinch/lumberjack.v2"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger defines a standard interface for logging.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	// Named returns a child logger tagged with the given component name.
	Named(component string) Logger
}

// Options selects the level, format and optional rotating file of a logger.
type Options struct {
	Level  string
	Format string
	// File enables a rotating log file written alongside stdout. Empty disables it.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// SlogLogger is a wrapper around Go's structured logger.
type SlogLogger struct {
	*slog.Logger
	closer io.Closer
}

// New creates a logger writing to stdout and, when configured, to a rotating file.
func New(opts Options) *SlogLogger {
	var w io.Writer = os.Stdout
	var closer io.Closer
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		w = io.MultiWriter(os.Stdout, file)
		closer = file
	}
	return NewWithWriter(opts, w, closer)
}

// NewWithWriter creates a logger writing to w. closer, if non-nil, is released by Close.
func NewWithWriter(opts Options, w io.Writer, closer io.Closer) *SlogLogger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return &SlogLogger{Logger: slog.New(handler), closer: closer}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return NewWithWriter(Options{Level: "error"}, io.Discard, nil)
}

// ParseLevel converts a level name into a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Named returns a child logger carrying a component attribute.
func (l *SlogLogger) Named(component string) Logger {
	return &SlogLogger{Logger: l.With(slog.String("component", component))}
}

// Close flushes and closes the rotating log file, if any.
func (l *SlogLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Debugf logs a message at the debug level.
func (l *SlogLogger) Debugf(format string, v ...interface{}) {
	l.Debug(fmt.Sprintf(format, v...))
}

// Infof logs a message at the info level.
func (l *SlogLogger) Infof(format string, v ...interface{}) {
	l.Info(fmt.Sprintf(format, v...))
}

// Warnf logs a message at the warn level.
func (l *SlogLogger) Warnf(format string, v ...interface{}) {
	l.Warn(fmt.Sprintf(format, v...))
}

// Errorf logs a message at the error level.
func (l *SlogLogger) Errorf(format string, v ...interface{}) {
	l.Error(fmt.Sprintf(format, v...))
}
