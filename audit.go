package efficio

import (
	"io"

	"github.com/ghost-in-the-sushi/efficio-webapp/internal/audit"
)

// AuditEvent is one account lifecycle occurrence delivered to an [AuditSink].
type AuditEvent = audit.Event

// AuditKind names an account lifecycle event. It renders as a stable
// snake_case string such as "login_failure".
type AuditKind = audit.Kind

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events in a channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink returns a [ChannelSink] holding up to buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// AuditKinds returns every [AuditKind] the engine emits, in a stable order.
func AuditKinds() []AuditKind {
	return audit.Kinds()
}
