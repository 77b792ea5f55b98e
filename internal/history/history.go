package history

import (
	"context"
	"time"

	"github.com/loykin/tracecap/internal/sink"
)

// EventType defines the kind of capture event mirrored to a sink.
type EventType string

const (
	EventAppend EventType = "append"
	EventClear  EventType = "clear"
)

// Event represents one capture event exported to external analytics systems.
type Event struct {
	Type       EventType   `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Record     sink.Record `json:"record"`
}

// Sink is a destination for capture events (analytics/statistics systems).
// Implementations must be safe for concurrent use. Sink failures never fail
// the capture request itself.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
