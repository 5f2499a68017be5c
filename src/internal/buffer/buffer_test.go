// FILE: logkeep/src/internal/buffer/buffer_test.go
package buffer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"logkeep/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(msg string) *core.LogEntry {
	return &core.LogEntry{
		Time:    time.Now(),
		Logger:  "test",
		Level:   core.LevelInfo,
		Message: msg,
	}
}

// countingListener records every notification it receives.
type countingListener struct {
	mu      sync.Mutex
	added   int
	removed int
	clears  int
	order   []string
}

func (c *countingListener) OnEntries(removed, added int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed += removed
	c.added += added
	c.order = append(c.order, fmt.Sprintf("entries(%d,%d)", removed, added))
}

func (c *countingListener) OnClear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	c.order = append(c.order, "clear")
}

func TestNew(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		b, err := New(10)
		require.NoError(t, err)
		assert.Equal(t, 10, b.Cap())
		assert.Equal(t, 0, b.Len())
	})

	t.Run("ZeroCapacity", func(t *testing.T) {
		b, err := New(0)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
		assert.Nil(t, b)
	})

	t.Run("NegativeCapacity", func(t *testing.T) {
		b, err := New(-5)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
		assert.Nil(t, b)
	})

	t.Run("Default", func(t *testing.T) {
		b := NewDefault()
		assert.Equal(t, DefaultCapacity, b.Cap())
	})
}

func TestBuffer_Add(t *testing.T) {
	t.Run("NilEntry", func(t *testing.T) {
		b := NewDefault()
		assert.ErrorIs(t, b.Add(nil), ErrNilEntry)
		assert.Equal(t, 0, b.Len())
	})

	t.Run("CapacityInvariant", func(t *testing.T) {
		b, err := New(4)
		require.NoError(t, err)

		for i := 0; i < 20; i++ {
			require.NoError(t, b.Add(testEntry(fmt.Sprintf("e%d", i))))

			s := b.State()
			assert.LessOrEqual(t, len(s.Entries), 4)
			assert.Equal(t, uint64(len(s.Entries)), s.TotalAdded-s.TotalRemoved)
		}
	})

	t.Run("FIFOEviction", func(t *testing.T) {
		b, err := New(3)
		require.NoError(t, err)

		for i := 1; i <= 7; i++ {
			require.NoError(t, b.Add(testEntry(fmt.Sprintf("e%d", i))))
		}

		entries := b.Entries()
		require.Len(t, entries, 3)
		assert.Equal(t, "e5", entries[0].Message)
		assert.Equal(t, "e6", entries[1].Message)
		assert.Equal(t, "e7", entries[2].Message)
	})
}

// Mirrors the canonical scenario: capacity 3, add A..E, then clear.
func TestBuffer_Scenario(t *testing.T) {
	b, err := New(3)
	require.NoError(t, err)

	for _, msg := range []string{"A", "B", "C", "D", "E"} {
		require.NoError(t, b.Add(testEntry(msg)))
	}

	s := b.State()
	require.Len(t, s.Entries, 3)
	assert.Equal(t, "C", s.Entries[0].Message)
	assert.Equal(t, "D", s.Entries[1].Message)
	assert.Equal(t, "E", s.Entries[2].Message)
	assert.Equal(t, uint64(5), s.TotalAdded)
	assert.Equal(t, uint64(2), s.TotalRemoved)

	b.Clear()

	s = b.State()
	assert.Empty(t, s.Entries)
	assert.Equal(t, uint64(5), s.TotalAdded)
	assert.Equal(t, uint64(5), s.TotalRemoved)
}

func TestBuffer_Clear(t *testing.T) {
	b, err := New(10)
	require.NoError(t, err)

	t.Run("EmptyBuffer", func(t *testing.T) {
		b.Clear()
		s := b.State()
		assert.Equal(t, uint64(0), s.TotalAdded)
		assert.Equal(t, uint64(0), s.TotalRemoved)
	})

	t.Run("PopulatedBuffer", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			require.NoError(t, b.Add(testEntry(fmt.Sprintf("e%d", i))))
		}
		b.Clear()

		s := b.State()
		assert.Equal(t, 0, b.Len())
		assert.Equal(t, uint64(4), s.TotalAdded)
		assert.Equal(t, uint64(4), s.TotalRemoved)
	})

	t.Run("AddAfterClear", func(t *testing.T) {
		require.NoError(t, b.Add(testEntry("after")))
		entries := b.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, "after", entries[0].Message)
	})
}

func TestBuffer_SetCapacity(t *testing.T) {
	t.Run("Invalid", func(t *testing.T) {
		b := NewDefault()
		assert.ErrorIs(t, b.SetCapacity(0), ErrInvalidCapacity)
		assert.ErrorIs(t, b.SetCapacity(-1), ErrInvalidCapacity)
	})

	t.Run("Grow", func(t *testing.T) {
		b, err := New(2)
		require.NoError(t, err)
		require.NoError(t, b.Add(testEntry("a")))
		require.NoError(t, b.Add(testEntry("b")))

		require.NoError(t, b.SetCapacity(5))
		assert.Equal(t, 5, b.Cap())
		assert.Equal(t, 2, b.Len())

		// New headroom must actually be usable.
		for i := 0; i < 3; i++ {
			require.NoError(t, b.Add(testEntry(fmt.Sprintf("c%d", i))))
		}
		s := b.State()
		assert.Equal(t, "a", s.Entries[0].Message)
		assert.Equal(t, uint64(0), s.TotalRemoved)
	})

	t.Run("ShrinkEvictsOldest", func(t *testing.T) {
		b, err := New(5)
		require.NoError(t, err)
		for i := 1; i <= 5; i++ {
			require.NoError(t, b.Add(testEntry(fmt.Sprintf("e%d", i))))
		}

		require.NoError(t, b.SetCapacity(2))

		s := b.State()
		require.Len(t, s.Entries, 2)
		assert.Equal(t, "e4", s.Entries[0].Message)
		assert.Equal(t, "e5", s.Entries[1].Message)
		assert.Equal(t, uint64(5), s.TotalAdded)
		assert.Equal(t, uint64(3), s.TotalRemoved)
	})
}

func TestBuffer_Get(t *testing.T) {
	b, err := New(3)
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		require.NoError(t, b.Add(testEntry(fmt.Sprintf("e%d", i))))
	}

	t.Run("InRange", func(t *testing.T) {
		e, err := b.Get(0)
		require.NoError(t, err)
		assert.Equal(t, "e3", e.Message)

		e, err = b.Get(2)
		require.NoError(t, err)
		assert.Equal(t, "e5", e.Message)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		_, err := b.Get(-1)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)

		_, err = b.Get(3)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	})
}

func TestBuffer_Slice(t *testing.T) {
	b, err := New(10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Add(testEntry(fmt.Sprintf("e%d", i))))
	}

	t.Run("SubRange", func(t *testing.T) {
		out, err := b.Slice(1, 4)
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, "e1", out[0].Message)
		assert.Equal(t, "e3", out[2].Message)
	})

	t.Run("EmptyRange", func(t *testing.T) {
		out, err := b.Slice(2, 2)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("FullRange", func(t *testing.T) {
		out, err := b.Slice(0, 5)
		require.NoError(t, err)
		assert.Len(t, out, 5)
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := b.Slice(-1, 2)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)

		_, err = b.Slice(0, 6)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)

		_, err = b.Slice(3, 1)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	})
}

func TestBuffer_Listeners(t *testing.T) {
	t.Run("Accounting", func(t *testing.T) {
		b, err := New(3)
		require.NoError(t, err)

		l := &countingListener{}
		b.AddListener(l)

		for i := 0; i < 7; i++ {
			require.NoError(t, b.Add(testEntry(fmt.Sprintf("e%d", i))))
		}
		b.Clear()

		s := b.State()
		assert.Equal(t, int(s.TotalAdded), l.added)
		// Clear-triggered removal is reported via OnClear, not OnEntries.
		assert.Equal(t, 4, l.removed)
		assert.Equal(t, 1, l.clears)
	})

	t.Run("PostMutationVisibility", func(t *testing.T) {
		b, err := New(5)
		require.NoError(t, err)

		var sizes []int
		b.AddListener(listenerFunc{
			onEntries: func(removed, added int) {
				// The buffer must already reflect the add this
				// notification describes.
				sizes = append(sizes, b.Len())
			},
		})

		for i := 0; i < 3; i++ {
			require.NoError(t, b.Add(testEntry(fmt.Sprintf("e%d", i))))
		}
		assert.Equal(t, []int{1, 2, 3}, sizes)
	})

	t.Run("Remove", func(t *testing.T) {
		b, err := New(3)
		require.NoError(t, err)

		l := &countingListener{}
		b.AddListener(l)
		require.NoError(t, b.Add(testEntry("a")))

		b.RemoveListener(l)
		require.NoError(t, b.Add(testEntry("b")))
		b.Clear()

		assert.Equal(t, 1, l.added)
		assert.Equal(t, 0, l.clears)
	})

	t.Run("RemoveUnknownIsNoop", func(t *testing.T) {
		b := NewDefault()
		b.RemoveListener(&countingListener{})
	})
}

type listenerFunc struct {
	onEntries func(removed, added int)
	onClear   func()
}

func (l listenerFunc) OnEntries(removed, added int) {
	if l.onEntries != nil {
		l.onEntries(removed, added)
	}
}

func (l listenerFunc) OnClear() {
	if l.onClear != nil {
		l.onClear()
	}
}

func TestBuffer_ConcurrentAdd(t *testing.T) {
	const (
		threads  = 8
		perAdder = 500
		capacity = 100
	)

	b, err := New(capacity)
	require.NoError(t, err)

	l := &countingListener{}
	b.AddListener(l)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perAdder; j++ {
				_ = b.Add(testEntry(fmt.Sprintf("w%d-%d", id, j)))
			}
		}(i)
	}
	wg.Wait()

	total := uint64(threads * perAdder)
	s := b.State()
	assert.Equal(t, total, s.TotalAdded)
	assert.Equal(t, total-capacity, s.TotalRemoved)
	assert.Len(t, s.Entries, capacity)

	assert.Equal(t, int(total), l.added)
	assert.Equal(t, int(total)-capacity, l.removed)
}

func TestBuffer_ConcurrentReaders(t *testing.T) {
	b, err := New(64)
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup

	// Writers.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; ; j++ {
				select {
				case <-done:
					return
				default:
					_ = b.Add(testEntry(fmt.Sprintf("w%d-%d", id, j)))
				}
			}
		}(i)
	}

	// Readers verify snapshot consistency under contention.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					s := b.State()
					if uint64(len(s.Entries)) != s.TotalAdded-s.TotalRemoved {
						t.Errorf("inconsistent snapshot: %d entries, added %d, removed %d",
							len(s.Entries), s.TotalAdded, s.TotalRemoved)
						return
					}
				}
			}
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(done)
	wg.Wait()
}

func TestBuffer_ConcurrentClear(t *testing.T) {
	b, err := New(32)
	require.NoError(t, err)

	var wg sync.WaitGroup
	const total = 2000

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			_ = b.Add(testEntry(fmt.Sprintf("e%d", i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			b.Clear()
			time.Sleep(time.Millisecond)
		}
	}()
	wg.Wait()

	// Every added entry is either stored or accounted as removed.
	s := b.State()
	assert.Equal(t, uint64(total), s.TotalAdded)
	assert.Equal(t, uint64(len(s.Entries)), s.TotalAdded-s.TotalRemoved)
}
