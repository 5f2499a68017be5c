// FILE: logkeep/src/internal/dispatch/handler.go
package dispatch

import (
	"logkeep/src/internal/buffer"
	"logkeep/src/internal/core"

	"github.com/lixenwraith/log"
)

// BufferHandler stores dispatched entries in a bounded buffer.
type BufferHandler struct {
	buf    *buffer.Buffer
	logger *log.Logger
}

// NewBufferHandler wraps a buffer as a dispatch handler.
func NewBufferHandler(buf *buffer.Buffer, logger *log.Logger) *BufferHandler {
	return &BufferHandler{buf: buf, logger: logger}
}

func (h *BufferHandler) Handle(entry core.LogEntry) {
	if err := h.buf.Add(&entry); err != nil {
		h.logger.Error("msg", "Failed to store entry",
			"component", "buffer_handler",
			"error", err)
	}
}

// Buffer returns the underlying buffer.
func (h *BufferHandler) Buffer() *buffer.Buffer {
	return h.buf
}
