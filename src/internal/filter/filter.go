// FILE: logkeep/src/internal/filter/filter.go

// Package filter decides which log entries reach the buffer and the
// sinks. The buffer itself performs no filtering; producers run every
// entry through a filter chain before handing it to the dispatcher.
package filter

import (
	"sync/atomic"

	"logkeep/src/internal/core"
)

// Filter tests whether a log entry should pass through.
type Filter interface {
	// Allow reports whether the entry passes the filter.
	Allow(entry core.LogEntry) bool

	// GetStats returns filter statistics.
	GetStats() map[string]any
}

const (
	TypeInclude = "include"
	TypeExclude = "exclude"

	LogicOr  = "or"
	LogicAnd = "and"
)

// Config describes a single filter stage.
type Config struct {
	// "include" passes matching entries, "exclude" drops them.
	Type string `toml:"type"`

	// "or" matches any pattern, "and" requires all patterns.
	Logic string `toml:"logic"`

	// Regex patterns matched against "logger level message".
	Patterns []string `toml:"patterns"`

	// Minimum severity; entries below it are dropped. Empty disables
	// the threshold.
	MinLevel string `toml:"min_level"`
}

// Threshold drops entries below a minimum severity.
type Threshold struct {
	min core.Level

	totalProcessed atomic.Uint64
	totalDropped   atomic.Uint64
}

// NewThreshold creates a severity threshold filter.
func NewThreshold(min core.Level) *Threshold {
	return &Threshold{min: min}
}

func (t *Threshold) Allow(entry core.LogEntry) bool {
	t.totalProcessed.Add(1)
	if entry.Level < t.min {
		t.totalDropped.Add(1)
		return false
	}
	return true
}

func (t *Threshold) GetStats() map[string]any {
	return map[string]any{
		"type":            "threshold",
		"min_level":       t.min.String(),
		"total_processed": t.totalProcessed.Load(),
		"total_dropped":   t.totalDropped.Load(),
	}
}
