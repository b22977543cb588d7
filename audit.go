package multiauth

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/multiauth/eventbus"
	internalaudit "github.com/MrEthical07/multiauth/internal/audit"
)

// AuditEvent is one security-relevant outcome. Passwords, codes, and
// tokens never appear in it; identifiers are masked.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// KafkaSink publishes audit events through an eventbus.Publisher.
type KafkaSink = internalaudit.KafkaSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewKafkaSink returns a sink publishing to multiauth.auth.audit.
func NewKafkaSink(p eventbus.Publisher, source string, logger *slog.Logger) *KafkaSink {
	return internalaudit.NewKafkaSink(p, source, logger)
}
