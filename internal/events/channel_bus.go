package events

import (
	"github.com/mutik-labs/mutik/pkg/mutik/v1/events"
	mutiklog "github.com/mutik-labs/mutik/pkg/mutik/v1/log"
)

// ChannelEventBus implements events.Bus using a buffered Go channel. It hands
// store events to consumers running in other goroutines (metrics exporters,
// audit loggers) without ever blocking the store's write path.
type ChannelEventBus struct {
	channel chan events.Event
	log     mutiklog.Logger
}

// NewChannelEventBus creates a new ChannelEventBus with the specified buffer size.
// If bufferSize is non-positive, a default of 100 is used.
// Panics if the provided logger is nil.
func NewChannelEventBus(bufferSize int, log mutiklog.Logger) *ChannelEventBus {
	const defaultBufferSize = 100
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if log == nil {
		panic("ChannelEventBus requires a non-nil logger")
	}

	bus := &ChannelEventBus{
		channel: make(chan events.Event, bufferSize),
		log:     log.With("component", "ChannelEventBus"),
	}
	bus.log.Debugf("ChannelEventBus initialized with buffer size %d", bufferSize)
	return bus
}

// Emit sends an event onto the internal buffered channel. The send is
// non-blocking: when the buffer is full the event is dropped with a warning.
func (c *ChannelEventBus) Emit(event events.Event) {
	select {
	case c.channel <- event:
		c.log.Debugf("Emitted event type '%s' for store '%s'", event.Type, event.StoreName)
	default:
		c.log.Warnf("Event channel buffer full, dropping event type '%s'", event.Type)
	}
}

// GetChannel returns the underlying event channel for consumers. It is not
// part of the public events.Bus interface.
func (c *ChannelEventBus) GetChannel() <-chan events.Event {
	return c.channel
}

// Close closes the underlying event channel, signalling consumers that no
// more events will be sent. Emitting after Close panics.
func (c *ChannelEventBus) Close() {
	c.log.Debugf("Closing ChannelEventBus channel.")
	close(c.channel)
}

var _ events.Bus = (*ChannelEventBus)(nil)
