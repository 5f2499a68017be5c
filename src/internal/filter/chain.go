// FILE: logkeep/src/internal/filter/chain.go
package filter

import (
	"fmt"
	"sync/atomic"

	"logkeep/src/internal/core"

	"github.com/lixenwraith/log"
)

// Chain runs entries through a sequence of filters; all must pass.
type Chain struct {
	filters []Filter
	logger  *log.Logger

	// Statistics
	totalProcessed atomic.Uint64
	totalPassed    atomic.Uint64
}

// NewChain creates a filter chain from a slice of filter configurations.
// A config with a MinLevel contributes a threshold stage before its
// pattern stage.
func NewChain(configs []Config, logger *log.Logger) (*Chain, error) {
	chain := &Chain{
		filters: make([]Filter, 0, len(configs)),
		logger:  logger,
	}

	for i, cfg := range configs {
		if cfg.MinLevel != "" {
			min, err := core.ParseLevel(cfg.MinLevel)
			if err != nil {
				return nil, fmt.Errorf("filter[%d]: %w", i, err)
			}
			chain.filters = append(chain.filters, NewThreshold(min))
		}
		if len(cfg.Patterns) > 0 || cfg.Type != "" {
			p, err := NewPattern(cfg, logger)
			if err != nil {
				return nil, fmt.Errorf("filter[%d]: %w", i, err)
			}
			chain.filters = append(chain.filters, p)
		}
	}

	logger.Info("msg", "Filter chain created",
		"component", "filter_chain",
		"filter_count", len(chain.filters))
	return chain, nil
}

// Allow runs a log entry through all filters in the chain.
func (c *Chain) Allow(entry core.LogEntry) bool {
	c.totalProcessed.Add(1)

	// No filters means pass everything
	if len(c.filters) == 0 {
		c.totalPassed.Add(1)
		return true
	}

	for i, f := range c.filters {
		if !f.Allow(entry) {
			c.logger.Debug("msg", "Entry filtered out",
				"component", "filter_chain",
				"filter_index", i)
			return false
		}
	}

	c.totalPassed.Add(1)
	return true
}

// GetStats returns aggregated statistics for the entire chain.
func (c *Chain) GetStats() map[string]any {
	filterStats := make([]map[string]any, len(c.filters))
	for i, f := range c.filters {
		filterStats[i] = f.GetStats()
	}

	return map[string]any{
		"filter_count":    len(c.filters),
		"total_processed": c.totalProcessed.Load(),
		"total_passed":    c.totalPassed.Load(),
		"filters":         filterStats,
	}
}
