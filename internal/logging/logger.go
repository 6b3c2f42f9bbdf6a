// Package logging provides the leveled logger shared by the CLI, the
// scheduler daemon and the privileged helper.
package logging

import (
	"io"
	"log"
	"os"
	"strings"
)

// Level is a logging severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level, defaulting to info
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

// Logger is a printf-style leveled logger
type Logger struct {
	logger *log.Logger
	level  Level
	file   *os.File
}

// New creates a logger writing to logFile, or stderr when logFile is empty
func New(logFile, level string) (*Logger, error) {
	if logFile == "" {
		return NewWithWriter(os.Stderr, level), nil
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	l := NewWithWriter(file, level)
	l.file = file
	return l, nil
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(w io.Writer, level string) *Logger {
	return &Logger{
		logger: log.New(w, "", log.LstdFlags),
		level:  ParseLevel(level),
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{
		logger: log.New(io.Discard, "", 0),
		level:  LevelError + 1,
	}
}

func (l *Logger) logf(level Level, tag, format string, args ...interface{}) {
	if l == nil || level < l.level {
		return
	}
	l.logger.Printf("["+tag+"] "+format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LevelDebug, "DEBUG", format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LevelInfo, "INFO", format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LevelWarn, "WARN", format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LevelError, "ERROR", format, args...)
}

// Close closes the underlying log file, if any
func (l *Logger) Close() error {
	if l != nil && l.file != nil {
		return l.file.Close()
	}
	return nil
}
