// FILE: logkeep/src/internal/format/format.go
package format

import (
	"fmt"

	"logkeep/src/internal/core"

	"github.com/lixenwraith/log"
)

// Formatter defines the interface for transforming a LogEntry into a byte slice.
type Formatter interface {
	// Format takes a LogEntry and returns the formatted log as a byte slice.
	Format(entry core.LogEntry) ([]byte, error)

	// Name returns the formatter type name
	Name() string
}

// Options carries the knobs shared by the built-in formatters.
type Options struct {
	// Text formatter
	TimestampFormat string `toml:"timestamp_format"`
	Template        string `toml:"template"`

	// JSON formatter
	Pretty bool `toml:"pretty"`
}

// New creates a new Formatter by name.
func New(name string, opts Options, logger *log.Logger) (Formatter, error) {
	// Default to text if no format specified
	if name == "" {
		name = "text"
	}

	switch name {
	case "json":
		return NewJSON(opts, logger)
	case "text":
		return NewText(opts, logger)
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", name)
	}
}
