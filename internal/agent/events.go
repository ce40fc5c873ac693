package agent

import (
	"context"
	"time"
)

// EventType names what happened during a turn.
type EventType string

const (
	EventToolStart EventType = "tool_start"
	EventToolEnd   EventType = "tool_end"
	EventAnswer    EventType = "answer"
	EventError     EventType = "error"
)

// Event is published to the listener attached to a turn's context.
type Event struct {
	Type    EventType `json:"type"`
	Tool    string    `json:"tool,omitempty"`
	Input   string    `json:"input,omitempty"`
	Output  string    `json:"output,omitempty"`
	Failure string    `json:"failure,omitempty"`
	Time    time.Time `json:"time"`
}

// Listener receives turn events. It is called synchronously from the
// goroutine running the turn.
type Listener func(Event)

type listenerKey struct{}

// WithListener attaches l to ctx; events emitted under ctx reach it.
func WithListener(ctx context.Context, l Listener) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, listenerKey{}, l)
}

// Emit publishes ev to the listener in ctx, if any.
func Emit(ctx context.Context, ev Event) {
	l, ok := ctx.Value(listenerKey{}).(Listener)
	if !ok {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	l(ev)
}
