// FILE: logkeep/src/internal/format/json.go
package format

import (
	"encoding/json"
	"fmt"
	"time"

	"logkeep/src/internal/core"

	"github.com/lixenwraith/log"
)

// JSON produces structured JSON logs from LogEntry values.
type JSON struct {
	opts   Options
	logger *log.Logger
}

// NewJSON creates a new JSON formatter.
func NewJSON(opts Options, logger *log.Logger) (*JSON, error) {
	return &JSON{
		opts:   opts,
		logger: logger,
	}, nil
}

// Format transforms a single LogEntry into a JSON byte slice.
func (f *JSON) Format(entry core.LogEntry) ([]byte, error) {
	output := map[string]any{
		"time":    entry.Time.Format(time.RFC3339Nano),
		"level":   entry.Level.String(),
		"logger":  entry.Logger,
		"message": entry.Message,
	}
	if entry.Marker != "" {
		output["marker"] = entry.Marker
	}
	if entry.Location != "" {
		output["location"] = entry.Location
	}
	if entry.Cause != nil {
		output["cause"] = entry.Cause.Error()
	}

	var result []byte
	var err error
	if f.opts.Pretty {
		result, err = json.MarshalIndent(output, "", "  ")
	} else {
		result, err = json.Marshal(output)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Add newline
	return append(result, '\n'), nil
}

// Name returns the formatter's type name.
func (f *JSON) Name() string {
	return "json"
}

// FormatBatch transforms a slice of entries into a single JSON array.
func (f *JSON) FormatBatch(entries []core.LogEntry) ([]byte, error) {
	batch := make([]json.RawMessage, 0, len(entries))

	for _, entry := range entries {
		formatted, err := f.Format(entry)
		if err != nil {
			f.logger.Warn("msg", "Failed to format entry in batch",
				"component", "json_formatter",
				"error", err)
			continue
		}

		// Remove the trailing newline for array elements
		if len(formatted) > 0 && formatted[len(formatted)-1] == '\n' {
			formatted = formatted[:len(formatted)-1]
		}

		batch = append(batch, formatted)
	}

	var result []byte
	var err error
	if f.opts.Pretty {
		result, err = json.MarshalIndent(batch, "", "  ")
	} else {
		result, err = json.Marshal(batch)
	}

	return result, err
}
