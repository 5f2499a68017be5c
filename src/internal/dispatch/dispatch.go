// FILE: logkeep/src/internal/dispatch/dispatch.go

// Package dispatch routes log entries from producers to registered
// handlers. A dispatcher applies an optional admission rate limit and
// an optional filter chain, then fans the entry out to every handler
// synchronously on the producing goroutine.
package dispatch

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"logkeep/src/internal/core"
	"logkeep/src/internal/filter"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// Handler consumes log entries accepted by a dispatcher.
type Handler interface {
	Handle(entry core.LogEntry)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(entry core.LogEntry)

func (f HandlerFunc) Handle(entry core.LogEntry) {
	f(entry)
}

// Dispatcher fans out log entries to named handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	chain    *filter.Chain
	limiter  *rate.Limiter
	logger   *log.Logger

	startTime time.Time

	// Statistics
	totalDispatched  atomic.Uint64
	totalFiltered    atomic.Uint64
	totalRateLimited atomic.Uint64
}

// New creates an empty dispatcher.
func New(logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		handlers:  make(map[string]Handler),
		logger:    logger,
		startTime: time.Now(),
	}
}

// SetFilter installs the filter chain applied to every entry. A nil
// chain passes everything.
func (d *Dispatcher) SetFilter(chain *filter.Chain) {
	d.mu.Lock()
	d.chain = chain
	d.mu.Unlock()
}

// SetRateLimit caps admissions to perSec entries per second with the
// given burst. Entries over the limit are dropped, not queued. A
// non-positive rate removes the limit.
func (d *Dispatcher) SetRateLimit(perSec float64, burst int) {
	d.mu.Lock()
	if perSec <= 0 {
		d.limiter = nil
	} else {
		d.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
	d.mu.Unlock()
}

// Register adds a named handler. Names must be unique.
func (d *Dispatcher) Register(name string, h Handler) error {
	if h == nil {
		return fmt.Errorf("handler '%s' is nil", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[name]; exists {
		return fmt.Errorf("handler '%s' already registered", name)
	}
	d.handlers[name] = h

	d.logger.Debug("msg", "Handler registered",
		"component", "dispatcher",
		"handler", name)
	return nil
}

// Unregister removes a named handler. Unknown names are a no-op.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	delete(d.handlers, name)
	d.mu.Unlock()

	d.logger.Debug("msg", "Handler unregistered",
		"component", "dispatcher",
		"handler", name)
}

// Dispatch runs an entry through the rate limit and filter chain, then
// hands it to every registered handler. It reports whether the entry
// was admitted.
func (d *Dispatcher) Dispatch(entry core.LogEntry) bool {
	d.mu.RLock()
	limiter := d.limiter
	chain := d.chain
	handlers := make([]Handler, 0, len(d.handlers))
	for _, h := range d.handlers {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	if limiter != nil && !limiter.Allow() {
		d.totalRateLimited.Add(1)
		return false
	}

	if chain != nil && !chain.Allow(entry) {
		d.totalFiltered.Add(1)
		return false
	}

	d.totalDispatched.Add(1)
	for _, h := range handlers {
		h.Handle(entry)
	}
	return true
}

// GetStats returns dispatcher statistics.
func (d *Dispatcher) GetStats() map[string]any {
	d.mu.RLock()
	handlerCount := len(d.handlers)
	chain := d.chain
	limited := d.limiter != nil
	d.mu.RUnlock()

	var filterStats map[string]any
	if chain != nil {
		filterStats = chain.GetStats()
	}

	return map[string]any{
		"handler_count":      handlerCount,
		"uptime_seconds":     int(time.Since(d.startTime).Seconds()),
		"total_dispatched":   d.totalDispatched.Load(),
		"total_filtered":     d.totalFiltered.Load(),
		"total_rate_limited": d.totalRateLimited.Load(),
		"rate_limited":       limited,
		"filters":            filterStats,
	}
}
