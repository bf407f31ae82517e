package models

import "time"

// FailurePattern summarises where failures concentrate for one service.
type FailurePattern struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Services    []string        `json:"services"`
	Signals     []SignalSummary `json:"signals"`
	Prevalence  float64         `json:"prevalence"`
	LastSeen    time.Time       `json:"lastSeen"`
}

// SignalSummary counts failures of one signal type for a pattern.
type SignalSummary struct {
	SignalType string  `json:"signalType"`
	Selector   string  `json:"selector"`
	Count      int     `json:"count"`
	Share      float64 `json:"share"`
}

// DataType enumerates signal categories.
type DataType string

const (
	DataTypeMetrics DataType = "metrics"
	DataTypeLogs    DataType = "logs"
	DataTypeTraces  DataType = "traces"
	DataTypeAlerts  DataType = "alerts"
)
