// FILE: logkeep/src/internal/buffer/codec_test.go
package buffer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"logkeep/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedBuffer(t *testing.T, capacity, entries int) *Buffer {
	t.Helper()
	b, err := New(capacity)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < entries; i++ {
		e := &core.LogEntry{
			Time:     base.Add(time.Duration(i) * time.Second),
			Logger:   fmt.Sprintf("logger.%d", i%3),
			Level:    core.Level(i % 5),
			Message:  fmt.Sprintf("message %d", i),
			Location: fmt.Sprintf("file.go:%d", 100+i),
		}
		if i%2 == 0 {
			e.Marker = "audit"
		}
		if i%3 == 0 {
			e.Cause = fmt.Errorf("cause of %d", i)
		}
		require.NoError(t, b.Add(e))
	}
	return b
}

func TestBuffer_RoundTrip(t *testing.T) {
	orig := populatedBuffer(t, 10, 7)

	var buf bytes.Buffer
	n, err := orig.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	restored, err := New(10)
	require.NoError(t, err)
	rn, err := restored.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, n, rn)

	want := orig.State()
	got := restored.State()

	assert.Equal(t, uint64(7), got.TotalAdded)
	assert.Equal(t, uint64(0), got.TotalRemoved)
	require.Len(t, got.Entries, len(want.Entries))

	for i := range want.Entries {
		w, g := want.Entries[i], got.Entries[i]
		assert.Equal(t, w.Message, g.Message)
		assert.Equal(t, w.Logger, g.Logger)
		assert.Equal(t, w.Level, g.Level)
		assert.Equal(t, w.Marker, g.Marker)
		assert.Equal(t, w.Location, g.Location)
		assert.True(t, w.Time.Equal(g.Time))

		// Cause round-trips as presence plus type and message.
		if w.Cause == nil {
			assert.Nil(t, g.Cause)
		} else {
			require.NotNil(t, g.Cause)
			cc, ok := g.Cause.(*core.CapturedCause)
			require.True(t, ok)
			assert.Equal(t, fmt.Sprintf("%T", w.Cause), cc.Type)
			assert.Equal(t, w.Cause.Error(), cc.Message)
		}
	}
}

func TestBuffer_RoundTripEmpty(t *testing.T) {
	b, err := New(5)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = b.WriteTo(&buf)
	require.NoError(t, err)

	restored, err := New(5)
	require.NoError(t, err)
	_, err = restored.ReadFrom(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, restored.Len())
}

func TestBuffer_ReadFromReplacesContents(t *testing.T) {
	orig := populatedBuffer(t, 10, 4)
	var buf bytes.Buffer
	_, err := orig.WriteTo(&buf)
	require.NoError(t, err)

	target := populatedBuffer(t, 10, 9)
	l := &countingListener{}
	target.AddListener(l)

	_, err = target.ReadFrom(&buf)
	require.NoError(t, err)

	s := target.State()
	assert.Len(t, s.Entries, 4)
	assert.Equal(t, uint64(4), s.TotalAdded)
	assert.Equal(t, uint64(0), s.TotalRemoved)
	assert.Equal(t, "message 0", s.Entries[0].Message)

	// Replacement is announced as a clear followed by the batch.
	assert.Equal(t, 1, l.clears)
	assert.Equal(t, 4, l.added)
}

func TestBuffer_ReadFromOverflow(t *testing.T) {
	orig := populatedBuffer(t, 10, 8)
	var buf bytes.Buffer
	_, err := orig.WriteTo(&buf)
	require.NoError(t, err)

	small, err := New(3)
	require.NoError(t, err)
	_, err = small.ReadFrom(&buf)
	require.NoError(t, err)

	s := small.State()
	require.Len(t, s.Entries, 3)
	assert.Equal(t, uint64(8), s.TotalAdded)
	assert.Equal(t, uint64(5), s.TotalRemoved)
	// Newest entries survive.
	assert.Equal(t, "message 5", s.Entries[0].Message)
	assert.Equal(t, "message 7", s.Entries[2].Message)
}

func TestBuffer_ReadFromMalformed(t *testing.T) {
	t.Run("TruncatedStream", func(t *testing.T) {
		orig := populatedBuffer(t, 10, 5)
		var buf bytes.Buffer
		_, err := orig.WriteTo(&buf)
		require.NoError(t, err)

		target := populatedBuffer(t, 10, 2)
		before := target.State()

		truncated := buf.Bytes()[:buf.Len()/2]
		_, err = target.ReadFrom(bytes.NewReader(truncated))
		require.Error(t, err)

		// A failed read must not touch the buffer.
		after := target.State()
		assert.Equal(t, before.TotalAdded, after.TotalAdded)
		assert.Equal(t, before.TotalRemoved, after.TotalRemoved)
		require.Len(t, after.Entries, len(before.Entries))
		for i := range before.Entries {
			assert.Equal(t, before.Entries[i].Message, after.Entries[i].Message)
		}
	})

	t.Run("EmptyStream", func(t *testing.T) {
		b := NewDefault()
		_, err := b.ReadFrom(bytes.NewReader(nil))
		assert.Error(t, err)
	})

	t.Run("CountWithoutData", func(t *testing.T) {
		b := NewDefault()
		// Claims 3 entries, carries none.
		_, err := b.ReadFrom(bytes.NewReader([]byte{0, 0, 0, 3}))
		require.Error(t, err)
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF))
		assert.Equal(t, 0, b.Len())
	})

	t.Run("HugeCount", func(t *testing.T) {
		target := populatedBuffer(t, 10, 2)
		before := target.State()

		// A corrupted header claiming ~2^31 entries must fail on the
		// missing records, not allocate for the claimed count.
		_, err := target.ReadFrom(bytes.NewReader([]byte{0x7F, 0xFF, 0xFF, 0xFF}))
		require.Error(t, err)
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

		after := target.State()
		assert.Equal(t, before.TotalAdded, after.TotalAdded)
		assert.Equal(t, before.TotalRemoved, after.TotalRemoved)
		require.Len(t, after.Entries, len(before.Entries))
	})
}
