package state

// Listener is notified after every committed state replacement. Listener
// identity is interface equality: registering the same pointer twice yields
// two registrations, and Off removes both. Implementations must therefore be
// comparable, which in practice means pointer types.
type Listener interface {
	OnChange()
}

// ListenerFunc adapts a plain func to a Listener. Each call returns a new
// identity, so keep the returned value to unregister it later.
func ListenerFunc(fn func()) Listener {
	return &listenerFunc{fn: fn}
}

type listenerFunc struct {
	fn func()
}

func (l *listenerFunc) OnChange() { l.fn() }

// Unsubscribe removes the registration it was returned for. Calling it more
// than once is harmless.
type Unsubscribe func()

// UpdaterFn derives the next state from the previous one.
type UpdaterFn[S any] func(prev S) S

// Recipe edits a private draft of the current state in place. Returning
// replace=true discards the draft and uses next as the new state instead.
type Recipe[S any] func(draft *S) (next S, replace bool)

// Reader is the read side of a Store. It is what subscription bridges and
// selector hooks depend on.
//
// IMPORTANT: Get returns the stored value itself, not a copy. Treat it as
// immutable; write through Set, Update, Mutate or Produce.
type Reader[S any] interface {
	// Get returns the current state. It has no side effects.
	Get() S

	// Version returns the generation of the current state. It increases by
	// one on every commit and is used to detect torn reads.
	Version() uint64

	// On registers l and returns a func that unregisters it. Duplicates are
	// allowed and each is notified once per commit.
	On(l Listener) Unsubscribe
}

// Store is a single-cell state container with synchronous listener fan-out.
// A Store is confined to one goroutine; it performs no locking.
type Store[S any] interface {
	Reader[S]

	// Set replaces the state and notifies every listener in registration
	// order. It never compares next with the current state.
	Set(next S)

	// Update is Set(fn(Get())).
	Update(fn UpdaterFn[S])

	// Mutate runs fn against a draft of the current state and commits the
	// result only if the draft differs from the current state. Unchanged
	// subtrees keep their identity.
	Mutate(fn func(draft *S))

	// Produce is Mutate for recipes that may return a replacement value.
	Produce(recipe Recipe[S])

	// Reset commits the construction-time state and notifies.
	Reset()

	// Off removes every registration equal to l. Unknown listeners are ignored.
	Off(l Listener)

	// Len returns the number of live registrations.
	Len() int

	// Name returns the store's name, used in logs, events and metrics.
	Name() string
}
