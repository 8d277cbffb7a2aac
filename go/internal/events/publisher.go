package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Event is the envelope every notification goes out in. Payload is one of the
// payload structs from this package.
type Event struct {
	ID      uuid.UUID
	Type    string
	Block   uint64
	Payload any
}

// Publisher delivers contract events to whoever listens.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NewEvent stamps a fresh envelope.
func NewEvent(eventType string, block uint64, payload any) Event {
	return Event{
		ID:      uuid.New(),
		Type:    eventType,
		Block:   block,
		Payload: payload,
	}
}

// Recorder is an in-memory publisher used by tests and local runs.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a snapshot of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters the recorded events by type.
func (r *Recorder) OfType(eventType string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
