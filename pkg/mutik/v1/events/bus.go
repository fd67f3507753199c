package events

import "time"

// EventType represents the type of a store lifecycle event.
type EventType string

// Standard mutik event types.
const (
	StoreCreated     EventType = "StoreCreated"
	StateCommitted   EventType = "StateCommitted"   // Set, Update, Reset or a changing Mutate
	MutationSkipped  EventType = "MutationSkipped"  // Mutate produced no change, nothing notified
	StoreReset       EventType = "StoreReset"       // emitted before the StateCommitted of a Reset
	ListenerAdded    EventType = "ListenerAdded"
	ListenerRemoved  EventType = "ListenerRemoved"
	ListenerPanicked EventType = "ListenerPanicked" // only with panic isolation enabled
)

// Event represents a significant occurrence within a store.
type Event struct {
	// Type categorizes the event.
	Type EventType `json:"type"`
	// Timestamp marks when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// StoreName identifies the emitting store.
	StoreName string `json:"store_name,omitempty"`
	// Version is the store generation after the event.
	Version uint64 `json:"version"`
	// Payload contains event-specific data. State values are never included:
	// they may be large and are owned by the application.
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Bus defines the interface for publishing store events.
type Bus interface {
	// Emit publishes an event. Stores call Emit synchronously from the write
	// path, so implementations must not block.
	Emit(event Event)
}
