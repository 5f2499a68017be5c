// FILE: logkeep/src/internal/dispatch/dispatch_test.go
package dispatch

import (
	"sync"
	"testing"

	"logkeep/src/internal/buffer"
	"logkeep/src/internal/core"
	"logkeep/src/internal/filter"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func TestDispatcher_Register(t *testing.T) {
	d := New(newTestLogger())

	t.Run("Success", func(t *testing.T) {
		err := d.Register("a", HandlerFunc(func(core.LogEntry) {}))
		assert.NoError(t, err)
	})

	t.Run("DuplicateName", func(t *testing.T) {
		err := d.Register("a", HandlerFunc(func(core.LogEntry) {}))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("NilHandler", func(t *testing.T) {
		err := d.Register("b", nil)
		assert.Error(t, err)
	})
}

func TestDispatcher_Dispatch(t *testing.T) {
	t.Run("FanOut", func(t *testing.T) {
		d := New(newTestLogger())

		var got []string
		require.NoError(t, d.Register("first", HandlerFunc(func(e core.LogEntry) {
			got = append(got, "first:"+e.Message)
		})))
		require.NoError(t, d.Register("second", HandlerFunc(func(e core.LogEntry) {
			got = append(got, "second:"+e.Message)
		})))

		admitted := d.Dispatch(core.LogEntry{Message: "hello"})
		assert.True(t, admitted)
		assert.Len(t, got, 2)
		assert.Contains(t, got, "first:hello")
		assert.Contains(t, got, "second:hello")
	})

	t.Run("Filtered", func(t *testing.T) {
		logger := newTestLogger()
		d := New(logger)

		chain, err := filter.NewChain([]filter.Config{{MinLevel: "warn"}}, logger)
		require.NoError(t, err)
		d.SetFilter(chain)

		handled := 0
		require.NoError(t, d.Register("h", HandlerFunc(func(core.LogEntry) { handled++ })))

		assert.False(t, d.Dispatch(core.LogEntry{Level: core.LevelInfo}))
		assert.True(t, d.Dispatch(core.LogEntry{Level: core.LevelError}))
		assert.Equal(t, 1, handled)

		stats := d.GetStats()
		assert.Equal(t, uint64(1), stats["total_dispatched"])
		assert.Equal(t, uint64(1), stats["total_filtered"])
	})

	t.Run("Unregister", func(t *testing.T) {
		d := New(newTestLogger())

		handled := 0
		require.NoError(t, d.Register("h", HandlerFunc(func(core.LogEntry) { handled++ })))
		d.Dispatch(core.LogEntry{Message: "one"})

		d.Unregister("h")
		d.Dispatch(core.LogEntry{Message: "two"})
		assert.Equal(t, 1, handled)
	})

	t.Run("RateLimit", func(t *testing.T) {
		d := New(newTestLogger())
		d.SetRateLimit(1, 2)

		handled := 0
		require.NoError(t, d.Register("h", HandlerFunc(func(core.LogEntry) { handled++ })))

		// Burst of 2 passes, the rest is dropped immediately.
		for i := 0; i < 10; i++ {
			d.Dispatch(core.LogEntry{Message: "burst"})
		}
		assert.Equal(t, 2, handled)

		stats := d.GetStats()
		assert.Equal(t, uint64(8), stats["total_rate_limited"])
	})
}

func TestBufferHandler(t *testing.T) {
	logger := newTestLogger()
	buf, err := buffer.New(3)
	require.NoError(t, err)

	d := New(logger)
	require.NoError(t, d.Register("buffer", NewBufferHandler(buf, logger)))

	for _, msg := range []string{"A", "B", "C", "D", "E"} {
		d.Dispatch(core.LogEntry{Level: core.LevelInfo, Message: msg})
	}

	s := buf.State()
	require.Len(t, s.Entries, 3)
	assert.Equal(t, "C", s.Entries[0].Message)
	assert.Equal(t, "E", s.Entries[2].Message)
	assert.Equal(t, uint64(5), s.TotalAdded)
	assert.Equal(t, uint64(2), s.TotalRemoved)
}

func TestDefault(t *testing.T) {
	t.Cleanup(func() { SetDefault(nil) })

	d1 := Default()
	d2 := Default()
	assert.Same(t, d1, d2)

	custom := New(newTestLogger())
	SetDefault(custom)
	assert.Same(t, custom, Default())
}

func TestDefault_ConcurrentReset(t *testing.T) {
	t.Cleanup(func() { SetDefault(nil) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if i%2 == 0 {
					SetDefault(nil)
				} else if Default() == nil {
					t.Error("Default returned nil")
					return
				}
			}
		}(i)
	}
	wg.Wait()

	assert.NotNil(t, Default())
}
