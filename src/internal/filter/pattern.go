// FILE: logkeep/src/internal/filter/pattern.go
package filter

import (
	"fmt"
	"regexp"
	"sync/atomic"

	"logkeep/src/internal/core"

	"github.com/lixenwraith/log"
)

// Pattern applies regex-based include/exclude filtering to log entries.
type Pattern struct {
	config   Config
	patterns []*regexp.Regexp
	logger   *log.Logger

	// Statistics
	totalProcessed atomic.Uint64
	totalMatched   atomic.Uint64
	totalDropped   atomic.Uint64
}

// NewPattern creates a pattern filter from configuration.
func NewPattern(cfg Config, logger *log.Logger) (*Pattern, error) {
	// Set defaults
	if cfg.Type == "" {
		cfg.Type = TypeInclude
	}
	if cfg.Logic == "" {
		cfg.Logic = LogicOr
	}

	p := &Pattern{
		config:   cfg,
		patterns: make([]*regexp.Regexp, 0, len(cfg.Patterns)),
		logger:   logger,
	}

	for i, pattern := range cfg.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern[%d] '%s': %w", i, pattern, err)
		}
		p.patterns = append(p.patterns, re)
	}

	logger.Debug("msg", "Pattern filter created",
		"component", "filter",
		"type", cfg.Type,
		"logic", cfg.Logic,
		"pattern_count", len(cfg.Patterns))

	return p, nil
}

// Allow checks if a log entry should be passed through.
func (p *Pattern) Allow(entry core.LogEntry) bool {
	p.totalProcessed.Add(1)

	// No patterns means pass everything
	if len(p.patterns) == 0 {
		return true
	}

	// Match against the fields that carry log content
	text := entry.Message
	if entry.Marker != "" {
		text = entry.Marker + " " + text
	}
	if entry.Level.Valid() {
		text = entry.Level.String() + " " + text
	}
	if entry.Logger != "" {
		text = entry.Logger + " " + text
	}

	matched := p.matches(text)
	if matched {
		p.totalMatched.Add(1)
	}

	shouldPass := false
	switch p.config.Type {
	case TypeInclude:
		shouldPass = matched
	case TypeExclude:
		shouldPass = !matched
	}

	if !shouldPass {
		p.totalDropped.Add(1)
	}

	return shouldPass
}

// matches checks text against the patterns according to the logic.
func (p *Pattern) matches(text string) bool {
	switch p.config.Logic {
	case LogicOr:
		for _, re := range p.patterns {
			if re.MatchString(text) {
				return true
			}
		}
		return false

	case LogicAnd:
		for _, re := range p.patterns {
			if !re.MatchString(text) {
				return false
			}
		}
		return true

	default:
		// Shouldn't happen after validation
		p.logger.Warn("msg", "Unknown filter logic",
			"component", "filter",
			"logic", p.config.Logic)
		return false
	}
}

// GetStats returns filter statistics.
func (p *Pattern) GetStats() map[string]any {
	return map[string]any{
		"type":            p.config.Type,
		"logic":           p.config.Logic,
		"pattern_count":   len(p.patterns),
		"total_processed": p.totalProcessed.Load(),
		"total_matched":   p.totalMatched.Load(),
		"total_dropped":   p.totalDropped.Load(),
	}
}
