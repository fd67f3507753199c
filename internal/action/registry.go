package action

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mutik-labs/mutik/pkg/mutik/v1/action"
	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"
)

// StaticRegistry implements action.Registry over a map filled at program
// start, usually from the init functions of the action packages.
type StaticRegistry struct {
	factories map[string]action.Factory
	mu        sync.RWMutex
}

// NewStaticRegistry creates a new, empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{factories: make(map[string]action.Factory)}
}

// Register associates name with factory.
func (r *StaticRegistry) Register(name string, factory action.Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return mutikerrors.NewConfigError("action registration error: name cannot be empty", nil)
	}
	if factory == nil {
		return mutikerrors.NewConfigError(fmt.Sprintf("action registration error for '%s': factory cannot be nil", name), nil)
	}
	if _, exists := r.factories[name]; exists {
		return mutikerrors.NewConfigError(fmt.Sprintf("action registration error: duplicate action name '%s'", name), nil)
	}
	r.factories[name] = factory
	return nil
}

// Get returns the factory for name.
func (r *StaticRegistry) Get(name string) (action.Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	if !exists {
		return nil, mutikerrors.NewActionNotFoundError(name)
	}
	return factory, nil
}

// List returns the registered action names, sorted.
func (r *StaticRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	globalRegistry = NewStaticRegistry()

	_ action.Registry = (*StaticRegistry)(nil)
)

// Register adds an action to the default registry. It is meant to be called
// from init functions and panics on error, since a failing registration is
// a programming mistake.
func Register(name string, factory action.Factory) {
	if err := globalRegistry.Register(name, factory); err != nil {
		panic(fmt.Errorf("failed to register action '%s' globally: %w", name, err))
	}
}

// DefaultRegistry returns the registry that init-time registrations land in.
func DefaultRegistry() action.Registry {
	return globalRegistry
}
