// Package log provides structured logging for eyegaze.
// It wraps slog with an optional rotating log file.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *slog.Logger
	closer io.Closer
	once   sync.Once
)

// Options configures the global logger
type Options struct {
	Level string `yaml:"level"`
	// File, when set, receives a copy of every record and is rotated by size.
	File string `yaml:"file"`
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is info.
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

// New builds a logger writing to w and, if opts.File is set, to a rotating
// file. The returned closer releases the file and may be nil.
func New(w io.Writer, opts Options) (*slog.Logger, io.Closer) {
	var c io.Closer
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		}
		w = io.MultiWriter(w, file)
		c = file
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	// Use JSON in production, text in development
	if os.Getenv("GO_ENV") == "production" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), c
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), c
}

// Init initializes the global logger. Only the first call has any effect.
func Init(opts Options) {
	once.Do(func() {
		logger, closer = New(os.Stderr, opts)
		slog.SetDefault(logger)
	})
}

// Close flushes and closes the log file, if any
func Close() error {
	if closer == nil {
		return nil
	}
	return closer.Close()
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init(Options{Level: "info"})
	}
	return logger
}

// Discard returns a logger that drops everything
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
