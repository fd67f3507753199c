package binding

import "github.com/mutik-labs/mutik/pkg/mutik/v1/state"

// BoundStore pairs a store with hooks that read it directly, without a
// provider in the component's context.
type BoundStore[S any] struct {
	store state.Store[S]
}

// Bind returns hooks bound to store.
func Bind[S any](store state.Store[S]) *BoundStore[S] {
	return &BoundStore[S]{store: store}
}

// Store returns the bound store.
func (b *BoundStore[S]) Store() state.Store[S] { return b.store }

// UseStore returns the whole state of the bound store.
func (b *BoundStore[S]) UseStore(c Component) S {
	return use[S, S](c, b.store, nil)
}

// UseBound is UseSelector against a bound store.
func UseBound[S, V any](c Component, b *BoundStore[S], selector func(S) V, opts ...SelectOption[V]) V {
	return use[S, V](c, b.store, selector, opts...)
}
