// FILE: logkeep/src/internal/dispatch/default.go
package dispatch

import (
	"sync"

	"github.com/lixenwraith/log"
)

// Process-wide default dispatcher. Construction is lazy and
// idempotent; components that want isolation should construct their
// own Dispatcher instead of reaching for this one.

var (
	defaultMu   sync.Mutex
	defaultDisp *Dispatcher
)

// Default returns the process-wide dispatcher, creating it on first
// use with a no-op logger.
func Default() *Dispatcher {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultDisp == nil {
		defaultDisp = New(log.NewLogger())
	}
	return defaultDisp
}

// SetDefault replaces the process-wide dispatcher. Intended for
// program initialization and tests; passing nil resets to lazy
// construction on the next Default call.
func SetDefault(d *Dispatcher) {
	defaultMu.Lock()
	defaultDisp = d
	defaultMu.Unlock()
}
