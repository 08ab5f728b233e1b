package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/topicgen/internal/events"
)

// EventRecorder implements events.EventEmitter and events.EventHandler by
// recording every event.
type EventRecorder struct {
	mu     sync.Mutex
	events []*events.Event
}

var (
	_ events.EventEmitter = (*EventRecorder)(nil)
	_ events.EventHandler = (*EventRecorder)(nil)
)

// EmitEvent implements events.EventEmitter.
func (r *EventRecorder) EmitEvent(ctx context.Context, ev *events.Event) error {
	return r.HandleEvent(ctx, ev)
}

// HandleEvent implements events.EventHandler.
func (r *EventRecorder) HandleEvent(_ context.Context, ev *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns the recorded events.
func (r *EventRecorder) Events() []*events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *EventRecorder) Types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// Last returns the most recent event of type t, or nil.
func (r *EventRecorder) Last(t events.Type) *events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i]
		}
	}
	return nil
}
