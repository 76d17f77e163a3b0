// Package events delivers integrity notifications to subscribers chosen at
// construction time. There is no package-level registry: whoever builds the
// engine builds the Bus and hands it to the components that publish.
package events

import (
	"sync"
	"time"
)

// Kind identifies an event.
type Kind string

const (
	BreakerTripped     Kind = "breaker.tripped"
	BreakerResolved    Kind = "breaker.resolved"
	BreakerReset       Kind = "breaker.reset"
	GuardDenied        Kind = "guard.denied"
	TensionDetected    Kind = "branch.tension"
	OracleDegraded     Kind = "oracle.degraded"
	StaleResultDropped Kind = "branch.stale_result"
	BranchAuditReady   Kind = "branch.audited"
)

// Event is a single notification. Fields not relevant to a kind are empty.
type Event struct {
	Kind    Kind      `json:"kind"`
	At      time.Time `json:"at"`
	Scope   string    `json:"scope,omitempty"`
	Code    string    `json:"code,omitempty"`
	Actor   string    `json:"actor,omitempty"`
	Message string    `json:"message,omitempty"`
	NodeIDs []string  `json:"node_ids,omitempty"`
}

// Subscriber receives events. Handle runs on the publisher's goroutine and
// must not block.
type Subscriber interface {
	Handle(Event)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(Event)

// Handle calls f(e).
func (f SubscriberFunc) Handle(e Event) { f(e) }

// Bus fans events out to a fixed subscriber list in order.
// A nil *Bus drops everything.
type Bus struct {
	subs []Subscriber
}

// NewBus creates a bus delivering to subs.
func NewBus(subs ...Subscriber) *Bus {
	return &Bus{subs: append([]Subscriber(nil), subs...)}
}

// Publish delivers e to every subscriber.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	for _, s := range b.subs {
		s.Handle(e)
	}
}

// Recorder is a Subscriber that keeps every event it sees.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle records e.
func (r *Recorder) Handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfKind returns the recorded events of kind k.
func (r *Recorder) OfKind(k Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
