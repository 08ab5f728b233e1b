package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies what an event reports.
type Type string

// Event types emitted by the pipeline.
const (
	TypeScanBatchStarted   Type = "scan.batch.started"
	TypeScanBatchCompleted Type = "scan.batch.completed"
	TypeScanDispatchFailed Type = "scan.dispatch.failed"
	TypeScanRelayFailed    Type = "scan.relay.failed"
	TypeWorkerStarted      Type = "worker.started"
	TypeWorkerCompleted    Type = "worker.completed"
	TypeWorkerFailed       Type = "worker.failed"
)

// Critical reports whether the event needs operator attention.
func (t Type) Critical() bool {
	return t == TypeScanRelayFailed
}

// Failure reports whether the event describes a failed operation.
func (t Type) Failure() bool {
	switch t {
	case TypeScanDispatchFailed, TypeScanRelayFailed, TypeWorkerFailed:
		return true
	default:
		return false
	}
}

// Event is a single observability record.
type Event struct {
	ID            uuid.UUID      `json:"id"`
	Type          Type           `json:"type"`
	CorrelationID string         `json:"correlationId"`
	TopicID       string         `json:"topicId,omitempty"`
	Message       string         `json:"message,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// New creates an event of the given type for a correlation ID.
func New(t Type, correlationID string) *Event {
	return &Event{
		ID:            uuid.New(),
		Type:          t,
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
	}
}

// WithTopic sets the topic the event concerns.
func (e *Event) WithTopic(topicID string) *Event {
	e.TopicID = topicID
	return e
}

// WithMessage sets a human-readable message.
func (e *Event) WithMessage(msg string) *Event {
	e.Message = msg
	return e
}

// With adds a structured field.
func (e *Event) With(key string, value any) *Event {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the pipeline to publish events without knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent implements EventHandler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}
