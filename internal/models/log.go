package models

import (
	"strings"
	"time"
)

// LogLevel is the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

// LogLevels lists levels from least to most severe.
var LogLevels = []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelFatal}

// ParseLogLevel accepts any casing of a known level.
func ParseLogLevel(v string) (LogLevel, bool) {
	level := LogLevel(strings.ToUpper(strings.TrimSpace(v)))
	for _, known := range LogLevels {
		if level == known {
			return level, true
		}
	}
	return "", false
}

// IsErrorLike reports ERROR and FATAL.
func (l LogLevel) IsErrorLike() bool {
	return l == LogLevelError || l == LogLevelFatal
}

// LogEntry is one generated log line. TraceID is empty when uncorrelated.
type LogEntry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Service   string            `json:"service"`
	Level     LogLevel          `json:"level"`
	Message   string            `json:"message"`
	TraceID   string            `json:"traceId,omitempty"`
	Context   map[string]Scalar `json:"context,omitempty"`
}
