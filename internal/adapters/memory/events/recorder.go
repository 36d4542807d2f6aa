package events

import (
	"context"
	"sync"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
)

// Recorder keeps published events in memory. It backs EVENTS_BACKEND=memory and tests.
// It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event

	// Err, when set, is returned from every Publish after the event is recorded.
	Err error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(ctx context.Context, e domain.Event) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

// Events returns a copy of what was published so far, in publish order.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// Types is a convenience for asserting on the sequence of event types.
func (r *Recorder) Types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
