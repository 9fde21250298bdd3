package stellarauth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditEvent is the security audit record emitted for every
// authentication-relevant outcome.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives emitted audit events. Emit must be safe for
// concurrent use; the dispatcher serializes calls from a single worker
// goroutine but tests may call sinks directly.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

// Emit implements [AuditSink].
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink writes audit events into a buffered channel for in-process
// consumers.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink returns a sink buffering up to buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

// Emit implements [AuditSink].
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the sink's channel for consumption.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line to an [io.Writer].
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink returns a sink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

// Emit implements [AuditSink].
func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
