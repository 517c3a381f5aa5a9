package notify

import (
	"sync"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Published is one call captured by Recorder.
type Published struct {
	Channel string
	Event   model.EventName
	Payload any
}

// Recorder is a synchronous Publisher that keeps every event in memory.
// Tests use it in place of the fanout.
type Recorder struct {
	mu     sync.Mutex
	events []Published
}

// Publish records the event.
func (r *Recorder) Publish(channel string, event model.EventName, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Published{Channel: channel, Event: event, Payload: payload})
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.events...)
}

// Count returns how many events named event were published on channel.
func (r *Recorder) Count(channel string, event model.EventName) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Channel == channel && e.Event == event {
			n++
		}
	}
	return n
}
