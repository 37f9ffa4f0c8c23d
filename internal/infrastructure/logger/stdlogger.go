package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// StdLogger implements application.Logger on top of log/slog
type StdLogger struct {
	logger *slog.Logger
}

// NewStdLogger creates a logger writing to stderr. Debug messages are
// dropped unless debugEnabled is set.
func NewStdLogger(debugEnabled bool) *StdLogger {
	return NewStdLoggerTo(os.Stderr, debugEnabled)
}

// NewStdLoggerTo creates a logger writing to w.
func NewStdLoggerTo(w io.Writer, debugEnabled bool) *StdLogger {
	level := slog.LevelInfo
	if debugEnabled {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &StdLogger{logger: slog.New(handler)}
}

// Slog exposes the underlying logger for components that log key/value pairs.
func (l *StdLogger) Slog() *slog.Logger {
	return l.logger
}

// Info logs an informational message
func (l *StdLogger) Info(msg string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(msg, args...))
}

// Error logs an error message
func (l *StdLogger) Error(msg string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(msg, args...))
}

// Debug logs a debug message
func (l *StdLogger) Debug(msg string, args ...interface{}) {
	if !l.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.logger.Debug(fmt.Sprintf(msg, args...))
}
