// Package models pkg/models/metrics.go
package models

import "time"

// CyclePoint records the outcome of one request cycle.
type CyclePoint struct {
	Timestamp time.Time     `json:"timestamp"`
	Elapsed   time.Duration `json:"elapsed"`
	Class     string        `json:"class,omitempty"`
}

// OK reports whether the cycle finished without a fatal error.
func (p CyclePoint) OK() bool {
	return p.Class == ""
}

// MetricsConfig controls the exported metrics and the in-memory cycle history.
type MetricsConfig struct {
	Enabled   bool `json:"metrics_enabled"`
	Retention int  `json:"metrics_retention"`
}

const DefaultCycleRetention = 100
