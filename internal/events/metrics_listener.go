package events

import (
	"context"

	intMetrics "github.com/mutik-labs/mutik/internal/metrics"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/events"
	mutiklog "github.com/mutik-labs/mutik/pkg/mutik/v1/log"
)

// MetricsEventListener consumes a ChannelEventBus and updates Prometheus
// metrics based on the events it receives.
type MetricsEventListener struct {
	bus        *ChannelEventBus
	log        mutiklog.Logger
	collectors *intMetrics.EventCollectors
}

// NewMetricsEventListener creates a new listener for bus that records into collectors.
func NewMetricsEventListener(bus *ChannelEventBus, collectors *intMetrics.EventCollectors, log mutiklog.Logger) *MetricsEventListener {
	if bus == nil || collectors == nil || log == nil {
		panic("MetricsEventListener requires a non-nil ChannelEventBus, EventCollectors, and Logger")
	}
	return &MetricsEventListener{
		bus:        bus,
		log:        log.With("component", "MetricsEventListener"),
		collectors: collectors,
	}
}

// Start consumes events until the bus channel is closed or ctx is done.
// It blocks; callers run it in its own goroutine.
func (l *MetricsEventListener) Start(ctx context.Context) {
	l.log.Debugf("Starting metrics event listener...")
	for {
		select {
		case event, ok := <-l.bus.GetChannel():
			if !ok {
				l.log.Debugf("Event bus channel closed, stopping listener.")
				return
			}
			l.handleEvent(event)
		case <-ctx.Done():
			l.log.Debugf("Context cancelled, stopping metrics event listener.")
			return
		}
	}
}

// handleEvent processes a single event, incrementing metrics as needed.
func (l *MetricsEventListener) handleEvent(event events.Event) {
	l.collectors.Events.WithLabelValues(string(event.Type)).Inc()
	if event.Type == events.ListenerPanicked {
		l.collectors.ListenerPanics.WithLabelValues(event.StoreName).Inc()
		l.log.Debugf("Recorded listener panic for store '%s'.", event.StoreName)
	}
}
