// FILE: logkeep/src/internal/buffer/codec.go
package buffer

import (
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"time"

	"logkeep/src/internal/core"
)

// Persistence format: a 4-byte big-endian entry count followed by one
// gob-encoded record per entry. This is a process-local snapshot
// mechanism for restoring the buffer across restarts, not a versioned
// wire format; streams written by a different build are not guaranteed
// to decode.

// record mirrors core.LogEntry with the cause flattened to what
// survives a round trip: presence, concrete type name and message.
type record struct {
	Message      string
	Logger       string
	Time         int64 // UnixNano
	Level        int8
	Marker       string
	Location     string
	HasCause     bool
	CauseType    string
	CauseMessage string
}

// WriteTo serializes a consistent snapshot of the buffer.
// It implements io.WriterTo.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	state := b.State()

	cw := &countingWriter{w: w}
	if err := binary.Write(cw, binary.BigEndian, uint32(len(state.Entries))); err != nil {
		return cw.n, fmt.Errorf("buffer: write entry count: %w", err)
	}

	enc := gob.NewEncoder(cw)
	for i := range state.Entries {
		e := &state.Entries[i]
		rec := record{
			Message:  e.Message,
			Logger:   e.Logger,
			Time:     e.Time.UnixNano(),
			Level:    int8(e.Level),
			Marker:   e.Marker,
			Location: e.Location,
		}
		if e.Cause != nil {
			rec.HasCause = true
			rec.CauseType = fmt.Sprintf("%T", e.Cause)
			rec.CauseMessage = e.Cause.Error()
		}
		if err := enc.Encode(&rec); err != nil {
			return cw.n, fmt.Errorf("buffer: encode entry %d: %w", i, err)
		}
	}
	return cw.n, nil
}

// ReadFrom replaces the buffer contents with a previously serialized
// snapshot. The stream is decoded in full before the buffer is
// touched; on any error the buffer keeps its prior contents. After a
// successful read, TotalAdded equals the stream's entry count and
// TotalRemoved the number of oldest entries dropped because the count
// exceeded the capacity (zero when it fits). Listeners receive OnClear
// followed by OnEntries(0, n). It implements io.ReaderFrom.
func (b *Buffer) ReadFrom(r io.Reader) (int64, error) {
	cr := &countingReader{r: r}

	var n uint32
	if err := binary.Read(cr, binary.BigEndian, &n); err != nil {
		return cr.n, fmt.Errorf("buffer: read entry count: %w", err)
	}

	// The count is untrusted input; cap the pre-allocation at the
	// buffer capacity and let append grow beyond it, so a corrupted
	// header cannot force a huge allocation. A count larger than the
	// available records fails below on the first missing record.
	prealloc := int(n)
	if c := b.Cap(); prealloc > c {
		prealloc = c
	}

	dec := gob.NewDecoder(cr)
	entries := make([]core.LogEntry, 0, prealloc)
	for i := uint32(0); i < n; i++ {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return cr.n, fmt.Errorf("buffer: decode entry %d of %d: %w", i, n, err)
		}
		e := core.LogEntry{
			Message:  rec.Message,
			Logger:   rec.Logger,
			Time:     time.Unix(0, rec.Time),
			Level:    core.Level(rec.Level),
			Marker:   rec.Marker,
			Location: rec.Location,
		}
		if rec.HasCause {
			e.Cause = &core.CapturedCause{Type: rec.CauseType, Message: rec.CauseMessage}
		}
		entries = append(entries, e)
	}

	b.mu.Lock()
	removed := 0
	if len(entries) > b.capacity {
		removed = len(entries) - b.capacity
		entries = entries[removed:]
	}
	storage := make([]core.LogEntry, b.capacity)
	copy(storage, entries)
	b.entries = storage
	b.start = 0
	b.count = len(entries)
	b.totalAdded = uint64(n)
	b.totalRemoved = uint64(removed)
	added := b.count
	listeners := b.listeners

	b.notifyMu.Lock()
	b.mu.Unlock()
	for _, l := range listeners {
		l.OnClear()
	}
	if added > 0 {
		for _, l := range listeners {
			l.OnEntries(0, added)
		}
	}
	b.notifyMu.Unlock()

	return cr.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
