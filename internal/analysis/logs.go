package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/miradorstack/mirador-synth/internal/models"
)

// MessageCount pairs a message with its number of occurrences.
type MessageCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// LogStatistics summarises a log stream.
type LogStatistics struct {
	TotalCount     int                     `json:"totalCount"`
	CountByLevel   map[models.LogLevel]int `json:"countByLevel"`
	CountByService map[string]int          `json:"countByService"`
	ErrorRate      float64                 `json:"errorRate"`
	WithTraceID    int                     `json:"withTraceId"`
	TopErrors      []MessageCount          `json:"topErrors,omitempty"`
}

const topErrorLimit = 5

// CalculateLogStatistics counts entries by level and service. ErrorRate is
// the ERROR+FATAL share of the total.
func CalculateLogStatistics(logs []models.LogEntry) LogStatistics {
	stats := LogStatistics{
		TotalCount:     len(logs),
		CountByLevel:   map[models.LogLevel]int{},
		CountByService: map[string]int{},
	}
	errorMessages := map[string]int{}
	errorCount := 0
	for _, entry := range logs {
		stats.CountByLevel[entry.Level]++
		stats.CountByService[entry.Service]++
		if entry.TraceID != "" {
			stats.WithTraceID++
		}
		if entry.Level.IsErrorLike() {
			errorCount++
			errorMessages[entry.Message]++
		}
	}
	if len(logs) > 0 {
		stats.ErrorRate = float64(errorCount) / float64(len(logs))
	}

	for msg, count := range errorMessages {
		stats.TopErrors = append(stats.TopErrors, MessageCount{Message: msg, Count: count})
	}
	sort.Slice(stats.TopErrors, func(i, j int) bool {
		if stats.TopErrors[i].Count != stats.TopErrors[j].Count {
			return stats.TopErrors[i].Count > stats.TopErrors[j].Count
		}
		return stats.TopErrors[i].Message < stats.TopErrors[j].Message
	})
	if len(stats.TopErrors) > topErrorLimit {
		stats.TopErrors = stats.TopErrors[:topErrorLimit]
	}
	return stats
}

// LogQuery filters a log stream. Zero fields match everything.
type LogQuery struct {
	Pattern  string
	Levels   []models.LogLevel
	Services []string
	TraceID  string
	Range    *models.TimeRange
}

// SearchLogs returns the entries matching q in their original order. Pattern
// is a case-insensitive regular expression; a pattern that fails to compile
// is matched as a plain substring instead.
func SearchLogs(logs []models.LogEntry, q LogQuery) []models.LogEntry {
	match := messageMatcher(q.Pattern)
	levels := toSet(q.Levels)
	services := toSet(q.Services)

	out := make([]models.LogEntry, 0)
	for _, entry := range logs {
		if len(levels) > 0 && !levels[entry.Level] {
			continue
		}
		if len(services) > 0 && !services[entry.Service] {
			continue
		}
		if q.TraceID != "" && entry.TraceID != q.TraceID {
			continue
		}
		if q.Range != nil && !q.Range.Contains(entry.Timestamp) {
			continue
		}
		if !match(entry.Message) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func messageMatcher(pattern string) func(string) bool {
	if pattern == "" {
		return func(string) bool { return true }
	}
	if re, err := regexp.Compile("(?i)" + pattern); err == nil {
		return re.MatchString
	}
	needle := strings.ToLower(pattern)
	return func(msg string) bool {
		return strings.Contains(strings.ToLower(msg), needle)
	}
}

func toSet[T comparable](items []T) map[T]bool {
	set := make(map[T]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
