// FILE: logkeep/src/internal/source/stdin_test.go
package source

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"logkeep/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLevel(t *testing.T) {
	testCases := []struct {
		line     string
		expected core.Level
	}{
		{"2025-06-01 ERROR something broke", core.LevelError},
		{"warn: disk almost full", core.LevelWarn},
		{"WARNING: deprecated flag", core.LevelWarn},
		{"debug dump follows", core.LevelDebug},
		{"TRACE enter handler", core.LevelTrace},
		{"plain message with no level", core.LevelInfo},
		{"", core.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			assert.Equal(t, tc.expected, extractLevel(tc.line))
		})
	}
}

func TestStdin_ReadsLines(t *testing.T) {
	s := NewStdin(10, log.NewLogger())
	s.reader = strings.NewReader("first line\n\nERROR second line\n")

	ch := s.Subscribe()
	require.NoError(t, s.Start())

	var entries []core.LogEntry
	timeout := time.After(2 * time.Second)
	for len(entries) < 2 {
		select {
		case e := <-ch:
			entries = append(entries, e)
		case <-timeout:
			t.Fatalf("timed out after %d entries", len(entries))
		}
	}

	assert.Equal(t, "first line", entries[0].Message)
	assert.Equal(t, core.LevelInfo, entries[0].Level)
	assert.Equal(t, "ERROR second line", entries[1].Message)
	assert.Equal(t, core.LevelError, entries[1].Level)
	assert.Equal(t, uint64(2), s.GetStats().TotalEntries)
}

func TestStdin_StopDuringPublish(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	s := NewStdin(1, log.NewLogger())
	s.reader = pr

	ch := s.Subscribe()
	require.NoError(t, s.Start())

	// Keep the reader busy publishing while Stop runs.
	go func() {
		for i := 0; ; i++ {
			if _, err := fmt.Fprintf(pw, "line %d\n", i); err != nil {
				return
			}
		}
	}()

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no entry received before Stop")
	}

	s.Stop()

	// The reader goroutine owns the channel and closes it on exit.
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("subscriber channel never closed after Stop")
		}
	}
}
