package v1

import (
	intState "github.com/mutik-labs/mutik/internal/state"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/binding"
	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/events"
	mutiklog "github.com/mutik-labs/mutik/pkg/mutik/v1/log"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/metrics"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/state"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/tracing"
)

// Configurable is the set of setters store options act on.
type Configurable interface {
	SetName(name string)
	SetLogger(log mutiklog.Logger)
	SetEventBus(bus events.Bus)
	SetMetricsRegistryProvider(provider metrics.RegistryProvider)
	SetTracerProvider(provider tracing.TracerProvider)
	SetPanicIsolation(enabled bool)
	SetMaxReentrancy(depth int)
}

// StoreOption is a function type used to configure a store at creation.
type StoreOption func(Configurable) error

var _ Configurable = (*intState.MemoryStore[struct{}])(nil)

// NewStore creates a store holding initial, applying opts in order.
func NewStore[S any](initial S, opts ...StoreOption) (state.Store[S], error) {
	s := intState.NewMemoryStore(initial)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateStore is NewStore for callers that treat an invalid option as a
// programming error. It panics if an option fails.
func CreateStore[S any](initial S, opts ...StoreOption) state.Store[S] {
	s, err := NewStore(initial, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// CreateBoundStore creates a store together with hooks bound to it, so
// components can read it without a provider.
func CreateBoundStore[S any](initial S, opts ...StoreOption) (state.Store[S], *binding.BoundStore[S]) {
	s := CreateStore(initial, opts...)
	return s, binding.Bind(s)
}

// WithName is a store option to set the name used in logs, events and metrics.
func WithName(name string) StoreOption {
	return func(c Configurable) error {
		if name == "" {
			return mutikerrors.NewConfigError("store name cannot be empty", nil)
		}
		c.SetName(name)
		return nil
	}
}

// WithLogger is a store option to provide a logger.
func WithLogger(log mutiklog.Logger) StoreOption {
	return func(c Configurable) error {
		if log == nil {
			return mutikerrors.NewConfigError("logger cannot be nil", nil)
		}
		c.SetLogger(log)
		return nil
	}
}

// WithEventBus is a store option to provide an event bus.
func WithEventBus(bus events.Bus) StoreOption {
	return func(c Configurable) error {
		if bus == nil {
			return mutikerrors.NewConfigError("event bus cannot be nil", nil)
		}
		c.SetEventBus(bus)
		return nil
	}
}

// WithMetricsRegistryProvider is a store option to enable Prometheus metrics.
func WithMetricsRegistryProvider(provider metrics.RegistryProvider) StoreOption {
	return func(c Configurable) error {
		if provider == nil {
			return mutikerrors.NewConfigError("metrics registry provider cannot be nil", nil)
		}
		c.SetMetricsRegistryProvider(provider)
		return nil
	}
}

// WithTracerProvider is a store option to provide a tracing provider.
func WithTracerProvider(provider tracing.TracerProvider) StoreOption {
	return func(c Configurable) error {
		if provider == nil {
			return mutikerrors.NewConfigError("tracer provider cannot be nil", nil)
		}
		c.SetTracerProvider(provider)
		return nil
	}
}

// WithPanicIsolation is a store option that makes notification recover
// listener panics, log them and continue with the next listener. By default
// a listener panic propagates to the writer and ends the pass.
func WithPanicIsolation(enabled bool) StoreOption {
	return func(c Configurable) error {
		c.SetPanicIsolation(enabled)
		return nil
	}
}

// WithMaxReentrancy is a store option to bound nested notification passes.
func WithMaxReentrancy(depth int) StoreOption {
	return func(c Configurable) error {
		if depth < 1 {
			return mutikerrors.NewConfigError("max reentrancy must be at least 1", nil)
		}
		c.SetMaxReentrancy(depth)
		return nil
	}
}
