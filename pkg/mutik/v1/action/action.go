package action

import (
	"context"

	"github.com/mutik-labs/mutik/pkg/mutik/v1/state"
)

// State is the document-shaped state scenarios run against: the shape YAML
// and JSON decode into.
type State = map[string]interface{}

// Action is a named, parameterized write against a document store. Actions
// are the steps of a scenario.
type Action interface {
	// Apply performs the write. params come from the scenario step and are
	// validated by the action. Apply must write only through store, and
	// must not retain store or params after it returns.
	Apply(ctx context.Context, store state.Store[State], params map[string]interface{}) error
}

// Factory creates new instances of an Action.
type Factory func() Action

// Registry maps action names to factories.
type Registry interface {
	// Get returns the factory registered under name, or an
	// *errors.ActionNotFoundError.
	Get(name string) (Factory, error)

	// Register associates name with factory. It fails if the name is empty,
	// the factory is nil or the name is already taken.
	Register(name string, factory Factory) error

	// List returns the registered names in sorted order.
	List() []string
}
