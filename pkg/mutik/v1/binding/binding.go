// Package binding is the reactive read path over a store. Components read
// through UseSelector or UseStore, which subscribe on first use, re-derive
// their projection on every commit and invalidate the component only when
// the projection changed.
//
// The rendering host is abstracted as Component; pkg/mutik/v1/render is a
// minimal implementation.
package binding

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mutik-labs/mutik/internal/bridge"
	"github.com/mutik-labs/mutik/internal/draft"
	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/state"
)

// Observer receives the (source, generation) pair of every read made during
// a render pass.
type Observer interface {
	Observe(source any, version uint64)
}

// Component is the contract a rendering host gives each node.
type Component interface {
	// Context carries providers for this node.
	Context() context.Context
	// Slot returns the next hook slot. Slots are matched to hook calls by
	// call order and keep their value across renders.
	Slot() *any
	// Invalidate schedules the node for re-render.
	Invalidate()
	// OnUnmount registers fn to run when the node is removed.
	OnUnmount(fn func())
	// Pass returns the observer of the render pass in progress, or nil.
	Pass() Observer
}

type storeKey[S any] struct{}

// Provide returns a context that makes store available to UseSelector and
// UseStore calls for state type S below it.
func Provide[S any](ctx context.Context, store state.Store[S]) context.Context {
	return context.WithValue(ctx, storeKey[S]{}, store)
}

// StoreFrom returns the nearest provided store for state type S.
func StoreFrom[S any](ctx context.Context) (state.Store[S], error) {
	if ctx != nil {
		if store, ok := ctx.Value(storeKey[S]{}).(state.Store[S]); ok && store != nil {
			return store, nil
		}
	}
	return nil, mutikerrors.NewInvariantViolationError("store provider in scope",
		fmt.Sprintf("no store for state type %s was provided to this component", typeName[S]()))
}

type selectOptions[V any] struct {
	equal func(a, b V) bool
}

// SelectOption configures a selector hook.
type SelectOption[V any] func(*selectOptions[V])

// WithEquality replaces the default identity comparison of selected values.
func WithEquality[V any](equal func(a, b V) bool) SelectOption[V] {
	return func(o *selectOptions[V]) {
		if equal != nil {
			o.equal = equal
		}
	}
}

// UseSelector returns selector applied to the provided store's current state
// and re-renders c whenever a commit changes the selected value. A nil
// selector selects the whole state, which requires S to be assignable to V.
//
// The selector may be a fresh closure on every render: the latest one is
// always used. UseSelector panics with an *errors.InvariantViolationError
// when no store for S is provided to c.
func UseSelector[S, V any](c Component, selector func(S) V, opts ...SelectOption[V]) V {
	store, err := StoreFrom[S](c.Context())
	if err != nil {
		panic(err)
	}
	return use[S, V](c, store, selector, opts...)
}

// UseStore returns the whole state of the provided store.
func UseStore[S any](c Component) S {
	return UseSelector[S, S](c, nil)
}

// slotHook is what a hook slot holds between renders.
type slotHook interface {
	close()
}

type selectorHook[S, V any] struct {
	src bridge.Source[S]
	sub *bridge.Subscription[S, V]
}

func (h *selectorHook[S, V]) close() { h.sub.Close() }

func use[S, V any](c Component, src bridge.Source[S], selector func(S) V, opts ...SelectOption[V]) V {
	o := selectOptions[V]{equal: draft.Same[V]}
	for _, opt := range opts {
		opt(&o)
	}
	if selector == nil {
		selector = identity[S, V]
	}

	slot := c.Slot()
	if *slot == nil {
		c.OnUnmount(func() {
			if h, ok := (*slot).(slotHook); ok {
				h.close()
			}
		})
	}
	hook, ok := (*slot).(*selectorHook[S, V])
	if !ok {
		// The slot held a hook of another type; its subscription is dropped.
		if prev, isHook := (*slot).(slotHook); isHook {
			prev.close()
		}
	}
	switch {
	case hook == nil:
		hook = &selectorHook[S, V]{src: src}
		hook.sub = bridge.Subscribe(src, selector, o.equal, c.Invalidate)
		*slot = hook
	case hook.src != src:
		hook.sub.Close()
		hook.src = src
		hook.sub = bridge.Subscribe(src, selector, o.equal, c.Invalidate)
	}

	hook.sub.SetSnapshot(selector)
	hook.sub.SetEquality(o.equal)
	return hook.sub.Read(c.Pass())
}

func identity[S, V any](s S) V {
	if any(s) == nil {
		var zero V
		return zero
	}
	v, ok := any(s).(V)
	if !ok {
		panic(mutikerrors.NewInvariantViolationError("identity selector",
			fmt.Sprintf("state type %s is not assignable to %s", typeName[S](), typeName[V]())))
	}
	return v
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
