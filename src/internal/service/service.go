// FILE: logkeep/src/internal/service/service.go

// Package service assembles a running logkeep instance from
// configuration: the bounded buffer, the dispatcher with its filter
// chain and rate limit, the stdin source, and the configured sinks.
package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"logkeep/src/internal/buffer"
	"logkeep/src/internal/config"
	"logkeep/src/internal/core"
	"logkeep/src/internal/dispatch"
	"logkeep/src/internal/filter"
	"logkeep/src/internal/format"
	"logkeep/src/internal/sink"
	"logkeep/src/internal/source"

	"github.com/lixenwraith/log"
)

// Service owns the full entry path from source to buffer and sinks.
type Service struct {
	cfg        *config.Config
	logger     *log.Logger
	buf        *buffer.Buffer
	dispatcher *dispatch.Dispatcher
	src        *source.Stdin
	sinks      []sink.Sink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime   time.Time
	sinkDropped atomic.Uint64
}

// New builds a service from configuration. Nothing is started yet.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Service, error) {
	serviceCtx, cancel := context.WithCancel(ctx)

	s := &Service{
		cfg:       cfg,
		logger:    logger,
		ctx:       serviceCtx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	// Buffer
	buf, err := buffer.New(cfg.Buffer.Capacity)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create buffer: %w", err)
	}
	s.buf = buf

	if cfg.Buffer.RestoreOnStart && cfg.Buffer.SnapshotPath != "" {
		if err := s.restoreSnapshot(cfg.Buffer.SnapshotPath); err != nil {
			cancel()
			return nil, err
		}
	}

	// Dispatcher
	s.dispatcher = dispatch.New(logger)
	if cfg.Dispatch.RateLimit > 0 {
		s.dispatcher.SetRateLimit(cfg.Dispatch.RateLimit, cfg.Dispatch.RateBurst)
	}
	if len(cfg.Filters) > 0 {
		chain, err := filter.NewChain(cfg.Filters, logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create filter chain: %w", err)
		}
		s.dispatcher.SetFilter(chain)
	}

	if err := s.dispatcher.Register("buffer", dispatch.NewBufferHandler(buf, logger)); err != nil {
		cancel()
		return nil, err
	}

	// Formatter shared by all sinks
	formatter, err := format.New(cfg.Format.Type, cfg.Format.Options, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create formatter: %w", err)
	}

	// Sinks
	for i, sinkCfg := range cfg.Sinks {
		inst, err := s.createSink(&sinkCfg, formatter)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create sink[%d]: %w", i, err)
		}
		s.sinks = append(s.sinks, inst)
	}

	// Admitted entries fan out to every sink, dropping when a sink
	// can't keep up; the buffer handler above never drops.
	if err := s.dispatcher.Register("sinks", dispatch.HandlerFunc(s.feedSinks)); err != nil {
		cancel()
		return nil, err
	}

	return s, nil
}

func (s *Service) createSink(cfg *config.SinkConfig, formatter format.Formatter) (sink.Sink, error) {
	switch cfg.Type {
	case "console":
		return sink.NewConsole(cfg.Console, s.logger, formatter)
	case "file":
		return sink.NewFile(cfg.File, s.logger, formatter)
	case "http":
		return sink.NewHTTP(cfg.HTTP, s.buf, s.logger, formatter)
	case "tcp":
		return sink.NewTCP(cfg.TCP, s.logger, formatter)
	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Type)
	}
}

func (s *Service) feedSinks(entry core.LogEntry) {
	for _, inst := range s.sinks {
		select {
		case inst.Input() <- entry:
		default:
			s.sinkDropped.Add(1)
		}
	}
}

// Start brings up sinks, the source and the pump goroutine.
func (s *Service) Start() error {
	for i, inst := range s.sinks {
		if err := inst.Start(s.ctx); err != nil {
			return fmt.Errorf("failed to start sink[%d]: %w", i, err)
		}
	}

	s.src = source.NewStdin(1000, s.logger)
	entries := s.src.Subscribe()
	if err := s.src.Start(); err != nil {
		return fmt.Errorf("failed to start source: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				s.dispatcher.Dispatch(entry)
			}
		}
	}()

	s.logger.Info("msg", "Service started",
		"component", "service",
		"buffer_capacity", s.buf.Cap(),
		"sink_count", len(s.sinks))
	return nil
}

// Buffer exposes the entry store, mainly for tests and commands.
func (s *Service) Buffer() *buffer.Buffer {
	return s.buf
}

// Dispatcher exposes the entry dispatcher.
func (s *Service) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// Shutdown stops the source, sinks and pump, then persists the buffer
// snapshot when configured.
func (s *Service) Shutdown() {
	s.logger.Info("msg", "Shutting down service", "component", "service")

	if s.src != nil {
		s.src.Stop()
	}

	s.cancel()
	s.wg.Wait()

	var wg sync.WaitGroup
	for _, inst := range s.sinks {
		wg.Add(1)
		go func(inst sink.Sink) {
			defer wg.Done()
			inst.Stop()
		}(inst)
	}
	wg.Wait()

	if s.cfg.Buffer.SnapshotPath != "" {
		if err := s.writeSnapshot(s.cfg.Buffer.SnapshotPath); err != nil {
			s.logger.Error("msg", "Failed to write buffer snapshot",
				"component", "service",
				"path", s.cfg.Buffer.SnapshotPath,
				"error", err)
		}
	}

	s.logger.Info("msg", "Service shutdown complete", "component", "service")
}

func (s *Service) restoreSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("msg", "No buffer snapshot to restore",
				"component", "service",
				"path", path)
			return nil
		}
		return fmt.Errorf("failed to open buffer snapshot: %w", err)
	}
	defer f.Close()

	if _, err := s.buf.ReadFrom(f); err != nil {
		return fmt.Errorf("failed to restore buffer snapshot: %w", err)
	}

	s.logger.Info("msg", "Buffer snapshot restored",
		"component", "service",
		"path", path,
		"entries", s.buf.Len())
	return nil
}

func (s *Service) writeSnapshot(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := s.buf.WriteTo(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}

// GetStats aggregates statistics across the whole service.
func (s *Service) GetStats() map[string]any {
	state := s.buf.State()

	sinkStats := make([]map[string]any, 0, len(s.sinks))
	for _, inst := range s.sinks {
		stats := inst.GetStats()
		sinkStats = append(sinkStats, map[string]any{
			"type":               stats.Type,
			"total_processed":    stats.TotalProcessed,
			"active_connections": stats.ActiveConnections,
			"start_time":         stats.StartTime,
			"last_processed":     stats.LastProcessed,
			"details":            stats.Details,
		})
	}

	var sourceStats map[string]any
	if s.src != nil {
		stats := s.src.GetStats()
		sourceStats = map[string]any{
			"type":            stats.Type,
			"total_entries":   stats.TotalEntries,
			"dropped_entries": stats.DroppedEntries,
		}
	}

	return map[string]any{
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"buffer": map[string]any{
			"size":          len(state.Entries),
			"capacity":      s.buf.Cap(),
			"total_added":   state.TotalAdded,
			"total_removed": state.TotalRemoved,
		},
		"dispatcher":   s.dispatcher.GetStats(),
		"source":       sourceStats,
		"sinks":        sinkStats,
		"sink_dropped": s.sinkDropped.Load(),
	}
}
