package events

import (
	"sync"
)

// Publisher accepts events in emission order.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(e Event) { f(e) }

// Multi fans each event out to every publisher in order.
type Multi []Publisher

func (m Multi) Publish(e Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(e)
		}
	}
}

// Stream hands events to a single consumer over a channel.
// The channel is closed after the terminal event. If the consumer goes away it
// calls Abandon and later events are discarded instead of blocking the producer.
type Stream struct {
	ch      chan Event
	gone    chan struct{}
	mu      sync.Mutex
	closed  bool
	abandon sync.Once
}

func NewStream(buffer int) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream{ch: make(chan Event, buffer), gone: make(chan struct{})}
}

// Events is the consumer side.
func (s *Stream) Events() <-chan Event { return s.ch }

func (s *Stream) Publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	case <-s.gone:
	}
	if e.Terminal() {
		s.closed = true
		close(s.ch)
	}
}

// Abandon tells the stream its consumer stopped reading.
func (s *Stream) Abandon() {
	s.abandon.Do(func() { close(s.gone) })
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Stages returns the recorded stage sequence.
func (r *Recorder) Stages() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = string(e.Stage)
	}
	return out
}

// Last returns the most recent event, or false when nothing was recorded.
func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}
