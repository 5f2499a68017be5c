// FILE: logkeep/src/internal/sink/console.go
package sink

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"logkeep/src/internal/config"
	"logkeep/src/internal/core"
	"logkeep/src/internal/format"

	"github.com/lixenwraith/log"
)

// Console writes log entries to stdout, stderr, or both ("split":
// entries up to INFO go to stdout, WARN and above to stderr).
type Console struct {
	input     chan core.LogEntry
	target    string
	stdout    io.Writer
	stderr    io.Writer
	done      chan struct{}
	startTime time.Time
	logger    *log.Logger
	formatter format.Formatter

	// Statistics
	totalProcessed atomic.Uint64
	lastProcessed  atomic.Value // time.Time
}

// NewConsole creates a console sink.
func NewConsole(opts *config.ConsoleOptions, logger *log.Logger, formatter format.Formatter) (*Console, error) {
	target := "stdout"
	bufferSize := int64(1000)
	if opts != nil {
		if opts.Target != "" {
			target = opts.Target
		}
		if opts.BufferSize > 0 {
			bufferSize = opts.BufferSize
		}
	}

	s := &Console{
		input:     make(chan core.LogEntry, bufferSize),
		target:    target,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		done:      make(chan struct{}),
		startTime: time.Now(),
		logger:    logger,
		formatter: formatter,
	}
	s.lastProcessed.Store(time.Time{})

	return s, nil
}

func (s *Console) Input() chan<- core.LogEntry {
	return s.input
}

func (s *Console) Start(ctx context.Context) error {
	go s.processLoop(ctx)
	s.logger.Info("msg", "Console sink started",
		"component", "console_sink",
		"target", s.target)
	return nil
}

func (s *Console) Stop() {
	s.logger.Info("msg", "Stopping console sink")
	close(s.done)
}

func (s *Console) GetStats() SinkStats {
	lastProc, _ := s.lastProcessed.Load().(time.Time)

	return SinkStats{
		Type:           "console",
		TotalProcessed: s.totalProcessed.Load(),
		StartTime:      s.startTime,
		LastProcessed:  lastProc,
		Details: map[string]any{
			"target": s.target,
		},
	}
}

func (s *Console) processLoop(ctx context.Context) {
	for {
		select {
		case entry, ok := <-s.input:
			if !ok {
				return
			}

			s.totalProcessed.Add(1)
			s.lastProcessed.Store(time.Now())

			formatted, err := s.formatter.Format(entry)
			if err != nil {
				s.logger.Error("msg", "Failed to format log entry for console",
					"component", "console_sink",
					"error", err)
				continue
			}
			s.writerFor(entry.Level).Write(formatted)

		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *Console) writerFor(level core.Level) io.Writer {
	switch s.target {
	case "stderr":
		return s.stderr
	case "split":
		if level >= core.LevelWarn {
			return s.stderr
		}
		return s.stdout
	default:
		return s.stdout
	}
}
