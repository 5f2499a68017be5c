// FILE: logkeep/src/internal/core/entry.go
package core

import (
	"fmt"
	"time"
)

// LogEntry is a single log record flowing through logkeep.
// Entries are treated as immutable once constructed; the buffer and
// every handler receive copies and never mutate stored values.
type LogEntry struct {
	Time     time.Time `json:"time"`
	Logger   string    `json:"logger"`
	Level    Level     `json:"level"`
	Marker   string    `json:"marker,omitempty"`
	Message  string    `json:"message"`
	Location string    `json:"location,omitempty"`
	Cause    error     `json:"-"`
}

// HasCause reports whether the entry carries an associated error.
func (e *LogEntry) HasCause() bool {
	return e.Cause != nil
}

// CapturedCause is the rehydrated form of an entry cause read back
// from a serialized buffer. Only the concrete type name and message of
// the original error survive the round trip.
type CapturedCause struct {
	Type    string
	Message string
}

func (c *CapturedCause) Error() string {
	if c.Type == "" {
		return c.Message
	}
	return fmt.Sprintf("%s: %s", c.Type, c.Message)
}
