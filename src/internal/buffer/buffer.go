// FILE: logkeep/src/internal/buffer/buffer.go

// Package buffer implements the bounded, thread-safe log entry store
// at the center of logkeep: a fixed-capacity ring that keeps the most
// recent entries, evicts oldest-first when full, and notifies
// registered listeners of every structural change.
package buffer

import (
	"errors"
	"fmt"
	"sync"

	"logkeep/src/internal/core"
)

// DefaultCapacity is used by NewDefault.
const DefaultCapacity = 1024

var (
	ErrInvalidCapacity = errors.New("buffer: capacity must be positive")
	ErrNilEntry        = errors.New("buffer: nil entry")
	ErrIndexOutOfRange = errors.New("buffer: index out of range")
)

// Listener observes structural changes to a Buffer. Callbacks run
// synchronously on the mutating goroutine, after the mutation is
// visible, so a listener may call back into the read API. A listener
// that panics aborts the triggering Add or Clear call.
type Listener interface {
	// OnEntries is invoked after every Add with the number of entries
	// evicted (0 or 1) and added (always 1) by that call.
	OnEntries(removed, added int)

	// OnClear is invoked after every Clear.
	OnClear()
}

// State is a consistent snapshot of a Buffer taken at one instant.
// Entries are ordered oldest first and are always the most recently
// added len(Entries) entries; TotalAdded-TotalRemoved == len(Entries).
type State struct {
	Entries      []core.LogEntry
	TotalAdded   uint64
	TotalRemoved uint64
}

// Buffer holds up to capacity recent log entries.
//
// Locking: mu guards storage, counters and the listener list. notifyMu
// serializes listener notification; it is acquired before mu is
// released so notifications are delivered in mutation commit order.
// Lock order is always mu then notifyMu. Listener callbacks run with
// neither lock required for the read API, so calling State or Get from
// a callback is safe.
type Buffer struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	entries  []core.LogEntry // ring storage, len == capacity
	start    int             // index of the oldest entry
	count    int
	capacity int

	totalAdded   uint64
	totalRemoved uint64

	listeners []Listener // copy-on-write
}

// New creates an empty buffer with the given capacity.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Buffer{
		entries:  make([]core.LogEntry, capacity),
		capacity: capacity,
	}, nil
}

// NewDefault creates an empty buffer with DefaultCapacity.
func NewDefault() *Buffer {
	b, _ := New(DefaultCapacity)
	return b
}

// Add appends an entry, evicting the oldest stored entry when the
// buffer is already full. It never blocks; eviction is the only
// overflow policy.
func (b *Buffer) Add(e *core.LogEntry) error {
	if e == nil {
		return ErrNilEntry
	}

	b.mu.Lock()
	removed := 0
	if b.count == b.capacity {
		b.entries[b.start] = core.LogEntry{}
		b.start = (b.start + 1) % b.capacity
		b.count--
		b.totalRemoved++
		removed = 1
	}
	b.entries[(b.start+b.count)%b.capacity] = *e
	b.count++
	b.totalAdded++
	listeners := b.listeners

	// Take the notify lock before releasing the state lock so
	// notifications keep the commit order of their mutations.
	b.notifyMu.Lock()
	b.mu.Unlock()
	for _, l := range listeners {
		l.OnEntries(removed, 1)
	}
	b.notifyMu.Unlock()

	return nil
}

// Clear removes every stored entry. TotalAdded is unchanged;
// TotalRemoved grows by the number of entries discarded.
func (b *Buffer) Clear() {
	b.mu.Lock()
	removed := b.count
	for i := range b.entries {
		b.entries[i] = core.LogEntry{}
	}
	b.start = 0
	b.count = 0
	b.totalRemoved += uint64(removed)
	listeners := b.listeners

	b.notifyMu.Lock()
	b.mu.Unlock()
	for _, l := range listeners {
		l.OnClear()
	}
	b.notifyMu.Unlock()
}

// SetCapacity resizes the buffer. Shrinking below the current size
// evicts oldest entries until the new capacity holds.
func (b *Buffer) SetCapacity(capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	keep := b.count
	if keep > capacity {
		evicted := keep - capacity
		b.start = (b.start + evicted) % b.capacity
		b.count -= evicted
		b.totalRemoved += uint64(evicted)
		keep = capacity
	}

	storage := make([]core.LogEntry, capacity)
	for i := 0; i < keep; i++ {
		storage[i] = b.entries[(b.start+i)%b.capacity]
	}
	b.entries = storage
	b.start = 0
	b.capacity = capacity
	return nil
}

// State returns a consistent snapshot of the buffer.
func (b *Buffer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return State{
		Entries:      b.copyLocked(0, b.count),
		TotalAdded:   b.totalAdded,
		TotalRemoved: b.totalRemoved,
	}
}

// Get returns the entry at logical position i, 0 being the oldest
// currently stored entry.
func (b *Buffer) Get(i int) (core.LogEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i < 0 || i >= b.count {
		return core.LogEntry{}, fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfRange, i, b.count)
	}
	return b.entries[(b.start+i)%b.capacity], nil
}

// Slice returns a copy of the logical sub-range [from, to).
func (b *Buffer) Slice(from, to int) ([]core.LogEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if from < 0 || to > b.count || from > to {
		return nil, fmt.Errorf("%w: range [%d, %d), size %d", ErrIndexOutOfRange, from, to, b.count)
	}
	return b.copyLocked(from, to), nil
}

// Entries returns a snapshot copy of all stored entries, oldest first.
func (b *Buffer) Entries() []core.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.copyLocked(0, b.count)
}

// Len returns the number of currently stored entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current capacity.
func (b *Buffer) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// AddListener registers a listener. Registration holds a strong
// reference; callers own the matching RemoveListener.
func (b *Buffer) AddListener(l Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	next := make([]Listener, len(b.listeners), len(b.listeners)+1)
	copy(next, b.listeners)
	b.listeners = append(next, l)
}

// RemoveListener unregisters a previously added listener. Removing a
// listener that was never added is a no-op.
func (b *Buffer) RemoveListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, reg := range b.listeners {
		if reg == l {
			next := make([]Listener, 0, len(b.listeners)-1)
			next = append(next, b.listeners[:i]...)
			next = append(next, b.listeners[i+1:]...)
			b.listeners = next
			return
		}
	}
}

// copyLocked copies the logical range [from, to); caller holds mu.
func (b *Buffer) copyLocked(from, to int) []core.LogEntry {
	out := make([]core.LogEntry, to-from)
	for i := range out {
		out[i] = b.entries[(b.start+from+i)%b.capacity]
	}
	return out
}
