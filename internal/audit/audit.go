package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/multiauth/eventbus"
)

// Event is one security-relevant outcome. Identifier is always masked.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	UserID     string            `json:"user_id,omitempty"`
	Identifier string            `json:"identifier,omitempty"`
	Role       string            `json:"role,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(append(data, '\n'))
}

// EventAudit is the event type of audit records published to Kafka.
const EventAudit = "auth.audit"

// KafkaSink publishes every event to the audit topic, keyed by user id so
// one user's trail stays ordered within a partition.
type KafkaSink struct {
	publisher eventbus.Publisher
	topic     string
	source    string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewKafkaSink publishes to multiauth.auth.audit. Publish failures are
// logged and dropped.
func NewKafkaSink(p eventbus.Publisher, source string, logger *slog.Logger) *KafkaSink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &KafkaSink{
		publisher: p,
		topic:     eventbus.Topic("auth", "audit"),
		source:    source,
		timeout:   5 * time.Second,
		logger:    logger,
	}
}

func (s *KafkaSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.publisher == nil {
		return
	}
	msg, err := eventbus.NewEvent(EventAudit, event.UserID, "user", s.source, event)
	if err != nil {
		s.logger.Error("failed to encode audit event", "error", err, "event_type", event.EventType)
		return
	}
	msg.WithMetadata("event_type", event.EventType)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, s.topic, msg); err != nil {
		s.logger.Warn("failed to publish audit event", "error", err, "event_type", event.EventType)
	}
}
