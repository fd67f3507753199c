package state

import (
	"context"
	"time"

	"github.com/mutik-labs/mutik/internal/draft"
	intEvents "github.com/mutik-labs/mutik/internal/events"
	"github.com/mutik-labs/mutik/internal/logger"
	intMetrics "github.com/mutik-labs/mutik/internal/metrics"
	intTracing "github.com/mutik-labs/mutik/internal/tracing"
	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/events"
	mutiklog "github.com/mutik-labs/mutik/pkg/mutik/v1/log"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/metrics"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/state"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/tracing"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultStoreName is used when no name is configured.
	DefaultStoreName = "store"
	// DefaultMaxReentrancy bounds nested notification passes.
	DefaultMaxReentrancy = 1000
)

// Write operation labels used in metrics and events.
const (
	opSet    = "set"
	opUpdate = "update"
	opMutate = "mutate"
	opReset  = "reset"
)

// registration is one entry of the listener list. Entries are never shared
// between lists after removal, so a notification pass holding an older list
// sees the removed flag and skips the entry.
type registration struct {
	listener state.Listener
	removed  bool
}

// MemoryStore implements state.Store over a single in-memory cell.
//
// Notification is depth-first: a write issued by a listener commits and runs
// its complete fan-out before the outer pass resumes, and the remaining outer
// listeners observe the newest state. Each pass iterates the listener list
// as it was when the pass started; listeners added during a pass first fire on
// the next commit, listeners removed during a pass do not fire again.
//
// MemoryStore performs no locking and must be confined to one goroutine.
type MemoryStore[S any] struct {
	name    string
	initial S
	current S
	version uint64
	regs    []*registration
	depth   int

	panicIsolation bool
	maxReentrancy  int

	log             mutiklog.Logger
	bus             events.Bus
	metricsProvider metrics.RegistryProvider
	collectors      *intMetrics.StoreCollectors
	tracerProvider  tracing.TracerProvider
	tracer          trace.Tracer
}

// NewMemoryStore creates a store holding initial. The store is usable
// immediately with a no-op logger, event bus and tracer; call the setters
// and then Init to attach real ones.
func NewMemoryStore[S any](initial S) *MemoryStore[S] {
	return &MemoryStore[S]{
		name:          DefaultStoreName,
		initial:       initial,
		current:       initial,
		maxReentrancy: DefaultMaxReentrancy,
		log:           logger.NewNopLogger(),
		bus:           intEvents.NewNoOpEventBus(),
		tracer:        noop.NewTracerProvider().Tracer(intTracing.TracerName),
	}
}

// SetName sets the name used in logs, events and metric labels.
func (s *MemoryStore[S]) SetName(name string) { s.name = name }

// SetLogger sets the store logger.
func (s *MemoryStore[S]) SetLogger(log mutiklog.Logger) { s.log = log }

// SetEventBus sets the bus lifecycle events are emitted on.
func (s *MemoryStore[S]) SetEventBus(bus events.Bus) { s.bus = bus }

// SetMetricsRegistryProvider enables Prometheus metrics for the store.
func (s *MemoryStore[S]) SetMetricsRegistryProvider(p metrics.RegistryProvider) {
	s.metricsProvider = p
}

// SetTracerProvider sets the provider Mutate spans are created from.
func (s *MemoryStore[S]) SetTracerProvider(p tracing.TracerProvider) { s.tracerProvider = p }

// SetPanicIsolation makes notification passes recover listener panics,
// log them and continue with the next listener.
func (s *MemoryStore[S]) SetPanicIsolation(enabled bool) { s.panicIsolation = enabled }

// SetMaxReentrancy sets how deeply notification passes may nest.
func (s *MemoryStore[S]) SetMaxReentrancy(depth int) { s.maxReentrancy = depth }

// Init finishes construction after options have been applied: it registers
// metrics, resolves the tracer and announces the store on the event bus.
func (s *MemoryStore[S]) Init() error {
	if s.metricsProvider != nil {
		collectors, err := intMetrics.NewStoreCollectors(s.metricsProvider.Registry())
		if err != nil {
			return mutikerrors.NewConfigError("registering metrics for store '"+s.name+"'", err)
		}
		s.collectors = collectors
		s.collectors.Listeners.WithLabelValues(s.name).Set(0)
	}
	if s.tracerProvider != nil {
		s.tracer = intTracing.GetTracer(s.tracerProvider)
	}
	s.log = s.log.With("store", s.name)
	s.emit(events.StoreCreated, nil)
	s.log.Debugf("Store initialized (panic isolation: %t, max reentrancy: %d).", s.panicIsolation, s.maxReentrancy)
	return nil
}

// Name returns the store name.
func (s *MemoryStore[S]) Name() string { return s.name }

// Get returns the current state.
func (s *MemoryStore[S]) Get() S { return s.current }

// Version returns the number of commits since construction.
func (s *MemoryStore[S]) Version() uint64 { return s.version }

// Len returns the number of live listener registrations.
func (s *MemoryStore[S]) Len() int { return len(s.regs) }

// Set replaces the state and notifies every listener, without comparing
// next to the current state.
func (s *MemoryStore[S]) Set(next S) { s.commit(next, opSet) }

// Update commits fn applied to the current state.
func (s *MemoryStore[S]) Update(fn state.UpdaterFn[S]) { s.commit(fn(s.current), opUpdate) }

// Reset commits the exact value the store was constructed with.
func (s *MemoryStore[S]) Reset() {
	s.emit(events.StoreReset, nil)
	s.commit(s.initial, opReset)
}

// Mutate commits the finalized draft only when fn changed something.
func (s *MemoryStore[S]) Mutate(fn func(draft *S)) {
	s.Produce(func(d *S) (S, bool) {
		fn(d)
		var zero S
		return zero, false
	})
}

// Produce runs recipe against a draft of the current state. A recipe that
// leaves the draft structurally equal to the current state, or returns the
// current state as its replacement, commits nothing and notifies nobody.
func (s *MemoryStore[S]) Produce(recipe state.Recipe[S]) {
	_, span := s.tracer.Start(context.Background(), "mutik.store.mutate",
		trace.WithAttributes(intTracing.AttrStoreName.String(s.name)))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			intTracing.RecordPanic(span, r)
			panic(r)
		}
	}()

	start := time.Now()
	next, changed := draft.Produce(s.current, draft.Recipe[S](recipe))
	if s.collectors != nil {
		s.collectors.MutateDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
	}
	span.SetAttributes(intTracing.AttrChanged.Bool(changed))

	if !changed {
		if s.collectors != nil {
			s.collectors.SkippedMutations.WithLabelValues(s.name).Inc()
		}
		s.emit(events.MutationSkipped, nil)
		s.log.Debugf("Mutation produced no change at version %d, skipping notification.", s.version)
		return
	}
	s.commit(next, opMutate)
	span.SetAttributes(
		intTracing.AttrStoreVersion.Int64(int64(s.version)),
		intTracing.AttrListenerCount.Int(len(s.regs)),
	)
}

// On registers l. Registering the same listener twice makes it fire twice.
func (s *MemoryStore[S]) On(l state.Listener) state.Unsubscribe {
	reg := &registration{listener: l}
	n := len(s.regs)
	// Full slice expression forces a fresh array, leaving any in-flight
	// pass iterating the previous one.
	s.regs = append(s.regs[:n:n], reg)
	s.listenersChanged(events.ListenerAdded)
	return func() { s.Off(l) }
}

// Off removes every registration of l.
func (s *MemoryStore[S]) Off(l state.Listener) {
	var kept []*registration
	removed := 0
	for _, reg := range s.regs {
		if reg.listener == l {
			reg.removed = true
			removed++
			continue
		}
		kept = append(kept, reg)
	}
	if removed == 0 {
		return
	}
	s.regs = kept
	s.listenersChanged(events.ListenerRemoved)
}

func (s *MemoryStore[S]) commit(next S, op string) {
	s.current = next
	s.version++
	if s.collectors != nil {
		s.collectors.Commits.WithLabelValues(s.name, op).Inc()
	}
	s.emit(events.StateCommitted, map[string]interface{}{"op": op})
	s.notify()
}

func (s *MemoryStore[S]) notify() {
	if s.depth >= s.maxReentrancy {
		panic(mutikerrors.NewReentrancyError(s.name, s.depth))
	}
	s.depth++
	defer func() { s.depth-- }()

	for _, reg := range s.regs {
		if reg.removed {
			continue
		}
		s.invoke(reg.listener)
	}
}

func (s *MemoryStore[S]) invoke(l state.Listener) {
	if s.collectors != nil {
		s.collectors.Notifications.WithLabelValues(s.name).Inc()
	}
	if s.panicIsolation {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if re, ok := r.(*mutikerrors.ReentrancyError); ok {
				panic(re)
			}
			err := mutikerrors.NewListenerPanicError(s.name, r)
			s.log.Errorf("Recovered listener panic at version %d: %v", s.version, err)
			s.emit(events.ListenerPanicked, map[string]interface{}{"error": err.Error()})
		}()
	}
	l.OnChange()
}

func (s *MemoryStore[S]) listenersChanged(t events.EventType) {
	if s.collectors != nil {
		s.collectors.Listeners.WithLabelValues(s.name).Set(float64(len(s.regs)))
	}
	s.emit(t, map[string]interface{}{"listeners": len(s.regs)})
}

func (s *MemoryStore[S]) emit(t events.EventType, payload map[string]interface{}) {
	s.bus.Emit(events.Event{
		Type:      t,
		Timestamp: time.Now(),
		StoreName: s.name,
		Version:   s.version,
		Payload:   payload,
	})
}

var _ state.Store[struct{}] = (*MemoryStore[struct{}])(nil)
