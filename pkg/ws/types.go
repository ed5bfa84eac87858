package ws

import (
	"sync"
	"time"
)

// EventType names a UI event pushed to subscribers.
type EventType string

const (
	EventMessage           EventType = "message"
	EventInputLocked       EventType = "input_locked"
	EventTyping            EventType = "typing"
	EventTypingDone        EventType = "typing_done"
	EventInputUnlocked     EventType = "input_unlocked"
	EventNotice            EventType = "notice"
	EventNoticeDismissed   EventType = "notice_dismissed"
	EventCharacterSelected EventType = "character_selected"
	EventPreview           EventType = "preview"
	EventPreviewReset      EventType = "preview_reset"
	EventConnected         EventType = "connected"
	EventPong              EventType = "pong"
	EventError             EventType = "error"
)

// Event is the envelope written to websocket clients and CLI printers.
// An empty SessionID addresses every subscriber.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, sessionID string, payload any) Event {
	return Event{Type: t, SessionID: sessionID, Payload: payload, Timestamp: time.Now().UTC()}
}

// Sink receives events. Publish must not block the caller for long.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Fanout publishes to several sinks in order.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewFanout builds a fanout over the non-nil sinks.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		f.Add(s)
	}
	return f
}

// Add attaches another sink.
func (f *Fanout) Add(s Sink) {
	if s == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
}

func (f *Fanout) Publish(e Event) {
	f.mu.RLock()
	sinks := f.sinks
	f.mu.RUnlock()
	for _, s := range sinks {
		s.Publish(e)
	}
}

// Recorder keeps every event it receives. Used by tests and the CLI.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of what has been recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types lists recorded event types in order.
func (r *Recorder) Types() []EventType {
	events := r.Events()
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
