// FILE: logkeep/src/internal/sink/http.go
package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"logkeep/src/internal/buffer"
	"logkeep/src/internal/config"
	"logkeep/src/internal/core"
	"logkeep/src/internal/format"
	"logkeep/src/internal/version"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
)

// HTTP serves the buffer over HTTP: a Server-Sent Events live stream,
// snapshot and sub-range reads, status, and an administrative clear.
type HTTP struct {
	config *config.HTTPOptions

	// Runtime
	buf           *buffer.Buffer
	input         chan core.LogEntry
	server        *fasthttp.Server
	activeClients atomic.Int64
	startTime     time.Time
	done          chan struct{}
	wg            sync.WaitGroup
	logger        *log.Logger
	formatter     format.Formatter

	// Broker architecture
	clients      map[uint64]chan core.LogEntry
	clientsMu    sync.RWMutex
	unregister   chan uint64
	nextClientID atomic.Uint64

	// Statistics
	totalProcessed atomic.Uint64
	lastProcessed  atomic.Value // time.Time
	authFailures   atomic.Uint64
	authSuccesses  atomic.Uint64
}

// NewHTTP creates an HTTP sink serving the given buffer.
func NewHTTP(opts *config.HTTPOptions, buf *buffer.Buffer, logger *log.Logger, formatter format.Formatter) (*HTTP, error) {
	if opts == nil {
		return nil, fmt.Errorf("HTTP sink options cannot be nil")
	}
	if buf == nil {
		return nil, fmt.Errorf("HTTP sink requires a buffer")
	}

	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	h := &HTTP{
		config:     opts,
		buf:        buf,
		input:      make(chan core.LogEntry, bufferSize),
		startTime:  time.Now(),
		done:       make(chan struct{}),
		logger:     logger,
		formatter:  formatter,
		clients:    make(map[uint64]chan core.LogEntry),
		unregister: make(chan uint64, 16),
	}
	h.lastProcessed.Store(time.Time{})

	if opts.AuthSecret != "" {
		logger.Info("msg", "Bearer token authentication enabled",
			"component", "http_sink")
	}

	return h, nil
}

func (h *HTTP) Input() chan<- core.LogEntry {
	return h.input
}

func (h *HTTP) Start(ctx context.Context) error {
	// Start central broker goroutine
	h.wg.Add(1)
	go h.brokerLoop(ctx)

	// Create fasthttp adapter for logging
	fasthttpLogger := compat.NewFastHTTPAdapter(h.logger)

	h.server = &fasthttp.Server{
		Name:             fmt.Sprintf("logkeep/%s", version.Short()),
		Handler:          h.requestHandler,
		DisableKeepalive: false,
		Logger:           fasthttpLogger,
		WriteTimeout:     time.Duration(h.config.WriteTimeoutMS) * time.Millisecond,
	}

	addr := fmt.Sprintf("%s:%d", h.config.Host, h.config.Port)

	// Run server in separate goroutine to avoid blocking
	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("msg", "HTTP server started",
			"component", "http_sink",
			"host", h.config.Host,
			"port", h.config.Port,
			"stream_path", h.config.StreamPath,
			"entries_path", h.config.EntriesPath,
			"status_path", h.config.StatusPath)

		if err := h.server.ListenAndServe(addr); err != nil {
			errChan <- err
		}
	}()

	// Monitor context for shutdown signal
	go func() {
		<-ctx.Done()
		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			h.server.ShutdownWithContext(shutdownCtx)
		}
	}()

	// Check if server started successfully
	select {
	case err := <-errChan:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// brokerLoop broadcasts entries to active stream clients.
func (h *HTTP) brokerLoop(ctx context.Context) {
	defer h.wg.Done()

	var ticker *time.Ticker
	var tickerChan <-chan time.Time

	if h.config.Heartbeat != nil && h.config.Heartbeat.Enabled {
		ticker = time.NewTicker(time.Duration(h.config.Heartbeat.IntervalSeconds) * time.Second)
		tickerChan = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return

		case clientID := <-h.unregister:
			// Broker owns channel cleanup
			h.clientsMu.Lock()
			if clientChan, exists := h.clients[clientID]; exists {
				delete(h.clients, clientID)
				close(clientChan)
			}
			h.clientsMu.Unlock()

		case entry, ok := <-h.input:
			if !ok {
				return
			}

			h.totalProcessed.Add(1)
			h.lastProcessed.Store(time.Now())
			h.broadcast(entry)

		case <-tickerChan:
			h.broadcast(h.heartbeatEntry())
		}
	}
}

func (h *HTTP) broadcast(entry core.LogEntry) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for id, ch := range h.clients {
		select {
		case ch <- entry:
		default:
			// Client buffer full, entry dropped for this client
			h.logger.Debug("msg", "Dropped entry for slow client",
				"component", "http_sink",
				"client_id", id)
		}
	}
}

func (h *HTTP) Stop() {
	h.logger.Info("msg", "Stopping HTTP sink")

	close(h.done)

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.server.ShutdownWithContext(ctx)
	}

	h.wg.Wait()

	h.clientsMu.Lock()
	for _, ch := range h.clients {
		close(ch)
	}
	h.clients = make(map[uint64]chan core.LogEntry)
	h.clientsMu.Unlock()

	h.logger.Info("msg", "HTTP sink stopped")
}

func (h *HTTP) GetStats() SinkStats {
	lastProc, _ := h.lastProcessed.Load().(time.Time)

	return SinkStats{
		Type:              "http",
		TotalProcessed:    h.totalProcessed.Load(),
		ActiveConnections: h.activeClients.Load(),
		StartTime:         h.startTime,
		LastProcessed:     lastProc,
		Details: map[string]any{
			"port": h.config.Port,
			"endpoints": map[string]string{
				"stream":  h.config.StreamPath,
				"entries": h.config.EntriesPath,
				"status":  h.config.StatusPath,
				"clear":   h.config.ClearPath,
			},
			"auth_enabled":   h.config.AuthSecret != "",
			"auth_failures":  h.authFailures.Load(),
			"auth_successes": h.authSuccesses.Load(),
		},
	}
}

func (h *HTTP) requestHandler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())

	// Status endpoint doesn't require auth
	if path == h.config.StatusPath {
		h.handleStatus(ctx)
		return
	}

	if !h.authenticate(ctx) {
		return
	}

	switch path {
	case h.config.StreamPath:
		h.handleStream(ctx)
	case h.config.EntriesPath:
		h.handleEntries(ctx)
	case h.config.ClearPath:
		h.handleClear(ctx)
	default:
		writeJSONError(ctx, fasthttp.StatusNotFound, "Not Found")
	}
}

// authenticate verifies the bearer token when auth is configured. It
// writes the error response itself and reports whether the request may
// proceed.
func (h *HTTP) authenticate(ctx *fasthttp.RequestCtx) bool {
	if h.config.AuthSecret == "" {
		return true
	}

	authHeader := string(ctx.Request.Header.Peek("Authorization"))
	tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		h.authFailures.Add(1)
		ctx.Response.Header.Set("WWW-Authenticate", "Bearer")
		writeJSONError(ctx, fasthttp.StatusUnauthorized, "Unauthorized")
		return false
	}

	_, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.config.AuthSecret), nil
	})
	if err != nil {
		h.authFailures.Add(1)
		h.logger.Warn("msg", "Authentication failed",
			"component", "http_sink",
			"remote_addr", ctx.RemoteAddr().String(),
			"error", err)
		ctx.Response.Header.Set("WWW-Authenticate", "Bearer")
		writeJSONError(ctx, fasthttp.StatusUnauthorized, "Unauthorized")
		return false
	}

	h.authSuccesses.Add(1)
	return true
}

// handleEntries returns a snapshot of the buffer, optionally reduced
// to the sub-range [from, to) given as query parameters.
func (h *HTTP) handleEntries(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() {
		writeJSONError(ctx, fasthttp.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	state := h.buf.State()
	entries := state.Entries

	args := ctx.QueryArgs()
	if args.Has("from") || args.Has("to") {
		from, err := queryInt(args, "from", 0)
		if err != nil {
			writeJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}
		to, err := queryInt(args, "to", len(entries))
		if err != nil {
			writeJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}
		if from < 0 || to > len(entries) || from > to {
			writeJSONError(ctx, fasthttp.StatusBadRequest,
				fmt.Sprintf("invalid range [%d, %d) for %d entries", from, to, len(entries)))
			return
		}
		entries = entries[from:to]
	}

	payload := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		formatted, err := h.formatter.Format(e)
		if err != nil {
			continue
		}
		payload = append(payload, bytes.TrimSuffix(formatted, []byte{'\n'}))
	}

	ctx.SetContentType("application/json")
	if h.formatter.Name() == "json" {
		json.NewEncoder(ctx).Encode(map[string]any{
			"total_added":   state.TotalAdded,
			"total_removed": state.TotalRemoved,
			"count":         len(entries),
			"entries":       payload,
		})
		return
	}

	// Text formatter: return plain lines
	ctx.SetContentType("text/plain; charset=utf-8")
	for _, line := range payload {
		ctx.Write(line)
		ctx.Write([]byte{'\n'})
	}
}

// handleClear empties the buffer.
func (h *HTTP) handleClear(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		writeJSONError(ctx, fasthttp.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	before := h.buf.Len()
	h.buf.Clear()

	h.logger.Info("msg", "Buffer cleared via HTTP",
		"component", "http_sink",
		"remote_addr", ctx.RemoteAddr().String(),
		"entries_removed", before)

	ctx.SetContentType("application/json")
	json.NewEncoder(ctx).Encode(map[string]any{
		"cleared": before,
	})
}

func (h *HTTP) handleStream(ctx *fasthttp.RequestCtx) {
	// Set SSE headers
	ctx.Response.Header.Set("Content-Type", "text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	// Register new client with broker
	clientID := h.nextClientID.Add(1)
	bufferSize := h.config.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	clientChan := make(chan core.LogEntry, bufferSize)

	h.clientsMu.Lock()
	h.clients[clientID] = clientChan
	h.clientsMu.Unlock()

	remoteAddr := ctx.RemoteAddr().String()

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		connectCount := h.activeClients.Add(1)
		h.logger.Debug("msg", "HTTP client connected",
			"component", "http_sink",
			"remote_addr", remoteAddr,
			"client_id", clientID,
			"active_clients", connectCount)

		h.wg.Add(1)
		defer func() {
			h.activeClients.Add(-1)

			// Signal broker to cleanup this client's channel
			select {
			case h.unregister <- clientID:
			case <-h.done:
			}

			h.wg.Done()
		}()

		// Initial connected event with buffer position
		state := h.buf.State()
		info, _ := json.Marshal(map[string]any{
			"client_id":     clientID,
			"buffered":      len(state.Entries),
			"total_added":   state.TotalAdded,
			"total_removed": state.TotalRemoved,
		})
		fmt.Fprintf(w, "event: connected\ndata: %s\n\n", info)
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case entry, ok := <-clientChan:
				if !ok {
					return
				}
				if err := h.writeSSE(w, entry); err != nil {
					continue
				}
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-h.done:
				fmt.Fprintf(w, "event: disconnect\ndata: {\"reason\":\"server_shutdown\"}\n\n")
				w.Flush()
				return
			}
		}
	})
}

func (h *HTTP) writeSSE(w *bufio.Writer, entry core.LogEntry) error {
	formatted, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	formatted = bytes.TrimSuffix(formatted, []byte{'\n'})

	// SSE needs a "data: " prefix per line
	for _, line := range bytes.Split(formatted, []byte{'\n'}) {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprintf(w, "\n")

	return nil
}

func (h *HTTP) heartbeatEntry() core.LogEntry {
	return core.LogEntry{
		Time:    time.Now(),
		Logger:  "logkeep.http",
		Level:   core.LevelInfo,
		Marker:  "heartbeat",
		Message: fmt.Sprintf("heartbeat: %d clients, up %ds", h.activeClients.Load(), int(time.Since(h.startTime).Seconds())),
	}
}

func (h *HTTP) handleStatus(ctx *fasthttp.RequestCtx) {
	state := h.buf.State()

	status := map[string]any{
		"service": "logkeep",
		"version": version.Short(),
		"server": map[string]any{
			"type":           "http",
			"port":           h.config.Port,
			"active_clients": h.activeClients.Load(),
			"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		},
		"buffer": map[string]any{
			"size":          len(state.Entries),
			"capacity":      h.buf.Cap(),
			"total_added":   state.TotalAdded,
			"total_removed": state.TotalRemoved,
		},
		"endpoints": map[string]string{
			"stream":  h.config.StreamPath,
			"entries": h.config.EntriesPath,
			"status":  h.config.StatusPath,
			"clear":   h.config.ClearPath,
		},
		"statistics": map[string]any{
			"total_processed": h.totalProcessed.Load(),
			"auth_failures":   h.authFailures.Load(),
			"auth_successes":  h.authSuccesses.Load(),
		},
	}

	ctx.SetContentType("application/json")
	data, _ := json.Marshal(status)
	ctx.SetBody(data)
}

func writeJSONError(ctx *fasthttp.RequestCtx, code int, message string) {
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	json.NewEncoder(ctx).Encode(map[string]string{
		"error": message,
	})
}

func queryInt(args *fasthttp.Args, key string, def int) (int, error) {
	if !args.Has(key) {
		return def, nil
	}
	v, err := strconv.Atoi(string(args.Peek(key)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: %w", key, err)
	}
	return v, nil
}
