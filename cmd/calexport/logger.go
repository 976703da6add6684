package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Level is a logging threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

// ParseLevel maps a level name to a Level. Unknown names map to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SimpleLogger is a prefixed, leveled logger.
type SimpleLogger struct {
	prefix string
	level  Level
	mu     sync.Mutex
	out    io.Writer
}

// NewSimpleLogger writes to out, or stderr when out is nil.
func NewSimpleLogger(prefix string, level Level, out io.Writer) *SimpleLogger {
	if out == nil {
		out = os.Stderr
	}
	return &SimpleLogger{prefix: prefix, level: level, out: out}
}

func (l *SimpleLogger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, "DEBUG", format, args...)
}

func (l *SimpleLogger) Infof(format string, args ...any) {
	l.logf(LevelInfo, "INFO", format, args...)
}

func (l *SimpleLogger) Errorf(format string, args ...any) {
	l.logf(LevelError, "ERROR", format, args...)
}

func (l *SimpleLogger) logf(level Level, tag, format string, args ...any) {
	if l == nil || level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] %s: %s\n", tag, l.prefix, fmt.Sprintf(format, args...))
}
