package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mutik"

// StoreCollectors holds the per-store write path metrics. Every store sharing
// a registry shares one set of collectors, partitioned by the "store" label.
type StoreCollectors struct {
	Commits          *prometheus.CounterVec
	Notifications    *prometheus.CounterVec
	SkippedMutations *prometheus.CounterVec
	Listeners        *prometheus.GaugeVec
	MutateDuration   *prometheus.HistogramVec
}

// NewStoreCollectors creates the store collectors and registers them with reg.
// Collectors already registered by another store are reused.
func NewStoreCollectors(reg prometheus.Registerer) (*StoreCollectors, error) {
	c := &StoreCollectors{
		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "commits_total",
			Help:      "Number of state replacements, by store and write operation.",
		}, []string{"store", "op"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "notifications_total",
			Help:      "Number of listener invocations.",
		}, []string{"store"}),
		SkippedMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "skipped_mutations_total",
			Help:      "Number of Mutate calls that changed nothing and notified nobody.",
		}, []string{"store"}),
		Listeners: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "listeners",
			Help:      "Number of live listener registrations.",
		}, []string{"store"}),
		MutateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "mutate_duration_seconds",
			Help:      "Time spent drafting and finalizing a structural update.",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
		}, []string{"store"}),
	}

	var err error
	if c.Commits, err = registerOrReuse(reg, c.Commits); err != nil {
		return nil, err
	}
	if c.Notifications, err = registerOrReuse(reg, c.Notifications); err != nil {
		return nil, err
	}
	if c.SkippedMutations, err = registerOrReuse(reg, c.SkippedMutations); err != nil {
		return nil, err
	}
	if c.Listeners, err = registerOrReuse(reg, c.Listeners); err != nil {
		return nil, err
	}
	if c.MutateDuration, err = registerOrReuse(reg, c.MutateDuration); err != nil {
		return nil, err
	}
	return c, nil
}

// EventCollectors holds the metrics fed by the MetricsEventListener.
type EventCollectors struct {
	Events         *prometheus.CounterVec
	ListenerPanics *prometheus.CounterVec
}

// NewEventCollectors creates the event collectors and registers them with reg.
func NewEventCollectors(reg prometheus.Registerer) (*EventCollectors, error) {
	c := &EventCollectors{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Number of store events observed on the event bus, by type.",
		}, []string{"type"}),
		ListenerPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_panics_total",
			Help:      "Number of listener panics recovered by stores running with panic isolation.",
		}, []string{"store"}),
	}
	var err error
	if c.Events, err = registerOrReuse(reg, c.Events); err != nil {
		return nil, err
	}
	if c.ListenerPanics, err = registerOrReuse(reg, c.ListenerPanics); err != nil {
		return nil, err
	}
	return c, nil
}

// registerOrReuse registers c, or returns the identical collector that is
// already registered under the same descriptor.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
