// Package bridge adapts a store's listener registration to the subscription
// contract a rendering host needs: change detection on a projected value, a
// fresh snapshot at the moment of consumption, and deterministic teardown.
package bridge

import "github.com/mutik-labs/mutik/pkg/mutik/v1/state"

// Source is the read side of a store as seen by a subscription.
type Source[S any] interface {
	Get() S
	Version() uint64
	On(l state.Listener) state.Unsubscribe
}

// Observer is implemented by a host's render pass. Every read reports the
// source it read and the generation it saw, which lets the pass detect two
// reads of one source at different generations.
type Observer interface {
	Observe(source any, version uint64)
}

// Subscription is a store listener that tracks one projection of the state
// for one consumer. It is itself the registered state.Listener.
type Subscription[S, V any] struct {
	src         Source[S]
	snapshot    func(S) V
	equal       func(a, b V) bool
	onChange    func()
	unsubscribe state.Unsubscribe

	last    V
	hasLast bool
	closed  bool

	// The projection of the state at cachedAt, valid until the snapshot
	// function is replaced.
	cached   V
	cachedAt uint64
	hasCache bool
}

// Subscribe registers a new subscription on src. onChange is called after a
// commit whose projection differs, under equal, from the last delivered one.
func Subscribe[S, V any](src Source[S], snapshot func(S) V, equal func(a, b V) bool, onChange func()) *Subscription[S, V] {
	sub := &Subscription[S, V]{
		src:      src,
		snapshot: snapshot,
		equal:    equal,
		onChange: onChange,
	}
	sub.unsubscribe = src.On(sub)
	return sub
}

// OnChange implements state.Listener. It projects the new state once; a
// Read at the same generation reuses that projection.
func (s *Subscription[S, V]) OnChange() {
	if s.closed {
		return
	}
	next := s.project()
	if s.hasLast && s.equal(s.last, next) {
		return
	}
	s.last, s.hasLast = next, true
	s.onChange()
}

// SetSnapshot replaces the projection. Later notifications and reads use it.
func (s *Subscription[S, V]) SetSnapshot(fn func(S) V) {
	s.snapshot = fn
	s.hasCache = false
}

// SetEquality replaces the comparison used to detect changes.
func (s *Subscription[S, V]) SetEquality(fn func(a, b V) bool) { s.equal = fn }

// Read returns the projection of the current state, reports the generation
// to obs and records the result as delivered. The selector only runs again
// when the store has moved past the last projected generation or the
// snapshot function was replaced.
func (s *Subscription[S, V]) Read(obs Observer) V {
	version := s.src.Version()
	v := s.project()
	if obs != nil {
		obs.Observe(s.src, version)
	}
	s.last, s.hasLast = v, true
	return v
}

func (s *Subscription[S, V]) project() V {
	version := s.src.Version()
	if s.hasCache && s.cachedAt == version {
		return s.cached
	}
	v := s.snapshot(s.src.Get())
	s.cached, s.cachedAt, s.hasCache = v, version, true
	return v
}

// Closed reports whether Close has been called.
func (s *Subscription[S, V]) Closed() bool { return s.closed }

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription[S, V]) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.unsubscribe()
}
