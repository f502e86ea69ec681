// Package listener provides a durable, insertion-ordered registry of event
// subscriptions whose lifetime is independent of any transport instance.
//
// The registry is the continuity mechanism behind transport replacement: the
// owning controller dispatches every event through it, so a listener
// registered once keeps receiving matching events from every replacement
// transport until removed. Once-listeners are consumed atomically with the
// dispatch snapshot, so they fire exactly one time total across the owner's
// lifetime, not once per transport.
package listener

import "sync"

// Subscription identifies a registered listener for later removal. Go
// function values are not comparable, so removal is by handle rather than by
// callback identity.
type Subscription struct {
	id    uint64
	event string
}

// Event returns the event name the subscription was registered under.
func (s Subscription) Event() string { return s.event }

type record[T any] struct {
	id   uint64
	fn   func(T)
	once bool
}

// Registry maps event names to ordered listener sequences, insertion order
// preserved.
type Registry[T any] struct {
	mu      sync.Mutex
	seq     uint64
	records map[string][]record[T]
}

// NewRegistry creates an empty registry
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{records: make(map[string][]record[T])}
}

// Add appends a listener for event, preserving insertion order relative to
// other listeners for the same event. When once is set, the listener is
// consumed by the first Snapshot that returns it.
func (r *Registry[T]) Add(event string, fn func(T), once bool) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.records[event] = append(r.records[event], record[T]{id: r.seq, fn: fn, once: once})
	return Subscription{id: r.seq, event: event}
}

// Remove deletes the listener identified by sub. It reports whether a
// listener was removed.
func (r *Registry[T]) Remove(sub Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	recs := r.records[sub.event]
	for i, rec := range recs {
		if rec.id == sub.id {
			r.records[sub.event] = append(recs[:i:i], recs[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns the listeners for event in insertion order and removes
// any once-listeners among them. Removal is atomic with the snapshot, which
// is what bounds a once-listener to a single firing even under concurrent
// dispatch.
func (r *Registry[T]) Snapshot(event string) []func(T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	recs := r.records[event]
	if len(recs) == 0 {
		return nil
	}
	fns := make([]func(T), 0, len(recs))
	kept := recs[:0]
	for _, rec := range recs {
		fns = append(fns, rec.fn)
		if !rec.once {
			kept = append(kept, rec)
		}
	}
	r.records[event] = kept
	return fns
}

// Len returns the number of listeners currently registered for event.
func (r *Registry[T]) Len(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records[event])
}

// Clear removes every listener for every event.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string][]record[T])
}
