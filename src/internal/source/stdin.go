// FILE: logkeep/src/internal/source/stdin.go
package source

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"sync/atomic"
	"time"

	"logkeep/src/internal/core"

	"github.com/lixenwraith/log"
)

// Stdin reads log entries from standard input, one line per entry.
type Stdin struct {
	subscribers    []chan core.LogEntry
	reader         io.Reader
	done           chan struct{}
	totalEntries   atomic.Uint64
	droppedEntries atomic.Uint64
	bufferSize     int64
	startTime      time.Time
	lastEntryTime  atomic.Value // time.Time
	logger         *log.Logger
}

// NewStdin creates a stdin source.
func NewStdin(bufferSize int64, logger *log.Logger) *Stdin {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	s := &Stdin{
		bufferSize:  bufferSize,
		reader:      os.Stdin,
		subscribers: make([]chan core.LogEntry, 0),
		done:        make(chan struct{}),
		logger:      logger,
		startTime:   time.Now(),
	}
	s.lastEntryTime.Store(time.Time{})
	return s
}

func (s *Stdin) Subscribe() <-chan core.LogEntry {
	ch := make(chan core.LogEntry, s.bufferSize)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Stdin) Start() error {
	go s.readLoop()
	s.logger.Info("msg", "Stdin source started", "component", "stdin_source")
	return nil
}

// Stop signals the reader to finish. The reader goroutine owns the
// subscriber channels and closes them on exit, so a publish in flight
// never races a close.
func (s *Stdin) Stop() {
	close(s.done)
	s.logger.Info("msg", "Stdin source stopped", "component", "stdin_source")
}

func (s *Stdin) GetStats() SourceStats {
	lastEntry, _ := s.lastEntryTime.Load().(time.Time)

	return SourceStats{
		Type:           "stdin",
		TotalEntries:   s.totalEntries.Load(),
		DroppedEntries: s.droppedEntries.Load(),
		StartTime:      s.startTime,
		LastEntryTime:  lastEntry,
		Details:        map[string]any{},
	}
}

func (s *Stdin) readLoop() {
	defer func() {
		for _, ch := range s.subscribers {
			close(ch)
		}
	}()

	scanner := bufio.NewScanner(s.reader)
	for scanner.Scan() {
		select {
		case <-s.done:
			return
		default:
			line := scanner.Text()
			if line == "" {
				continue
			}

			entry := core.LogEntry{
				Time:    time.Now(),
				Logger:  "stdin",
				Message: line,
				Level:   extractLevel(line),
			}

			s.publish(entry)
		}
	}

	if err := scanner.Err(); err != nil {
		s.logger.Error("msg", "Scanner error reading stdin",
			"component", "stdin_source",
			"error", err)
	}
}

func (s *Stdin) publish(entry core.LogEntry) {
	s.totalEntries.Add(1)
	s.lastEntryTime.Store(entry.Time)

	for _, ch := range s.subscribers {
		select {
		case ch <- entry:
		default:
			s.droppedEntries.Add(1)
			s.logger.Debug("msg", "Dropped log entry - subscriber buffer full",
				"component", "stdin_source")
		}
	}
}

var levelPattern = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN(?:ING)?|ERROR)\b`)

// extractLevel guesses a severity from the line content, defaulting
// to INFO when no level token is present.
func extractLevel(line string) core.Level {
	match := levelPattern.FindString(line)
	if match == "" {
		return core.LevelInfo
	}
	level, err := core.ParseLevel(match)
	if err != nil {
		return core.LevelInfo
	}
	return level
}
