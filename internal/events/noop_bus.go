package events

import "github.com/mutik-labs/mutik/pkg/mutik/v1/events"

// NoOpEventBus is the default events.Bus for stores created without one.
// Emit does nothing, so the write path never has to nil-check its bus.
type NoOpEventBus struct{}

// NewNoOpEventBus creates a new instance of the NoOpEventBus.
func NewNoOpEventBus() events.Bus {
	return &NoOpEventBus{}
}

// Emit implements the events.Bus interface method.
func (n *NoOpEventBus) Emit(event events.Event) {}

var _ events.Bus = (*NoOpEventBus)(nil)
