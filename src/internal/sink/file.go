// FILE: logkeep/src/internal/sink/file.go
package sink

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"logkeep/src/internal/config"
	"logkeep/src/internal/core"
	"logkeep/src/internal/format"

	"github.com/lixenwraith/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// File writes formatted log entries to a size-rotated file.
type File struct {
	input     chan core.LogEntry
	writer    *lumberjack.Logger
	done      chan struct{}
	startTime time.Time
	logger    *log.Logger
	formatter format.Formatter

	// Statistics
	totalProcessed atomic.Uint64
	lastProcessed  atomic.Value // time.Time
	writeErrors    atomic.Uint64
}

// NewFile creates a rotating file sink.
func NewFile(opts *config.FileOptions, logger *log.Logger, formatter format.Formatter) (*File, error) {
	if opts == nil || opts.Path == "" {
		return nil, fmt.Errorf("file sink requires a path")
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	s := &File{
		input: make(chan core.LogEntry, bufferSize),
		writer: &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		},
		done:      make(chan struct{}),
		startTime: time.Now(),
		logger:    logger,
		formatter: formatter,
	}
	s.lastProcessed.Store(time.Time{})

	return s, nil
}

func (s *File) Input() chan<- core.LogEntry {
	return s.input
}

func (s *File) Start(ctx context.Context) error {
	go s.processLoop(ctx)
	s.logger.Info("msg", "File sink started",
		"component", "file_sink",
		"path", s.writer.Filename)
	return nil
}

func (s *File) Stop() {
	s.logger.Info("msg", "Stopping file sink")
	close(s.done)
	if err := s.writer.Close(); err != nil {
		s.logger.Error("msg", "Failed to close log file",
			"component", "file_sink",
			"error", err)
	}
}

func (s *File) GetStats() SinkStats {
	lastProc, _ := s.lastProcessed.Load().(time.Time)

	return SinkStats{
		Type:           "file",
		TotalProcessed: s.totalProcessed.Load(),
		StartTime:      s.startTime,
		LastProcessed:  lastProc,
		Details: map[string]any{
			"path":         s.writer.Filename,
			"max_size_mb":  s.writer.MaxSize,
			"write_errors": s.writeErrors.Load(),
		},
	}
}

func (s *File) processLoop(ctx context.Context) {
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
				s.logger.Error("msg", "Failed to format log entry for file",
					"component", "file_sink",
					"error", err)
				continue
			}
			if _, err := s.writer.Write(formatted); err != nil {
				s.writeErrors.Add(1)
				s.logger.Error("msg", "Failed to write log entry",
					"component", "file_sink",
					"error", err)
			}

		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}
