package state_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/mutik-labs/mutik/internal/draft"
	intEvents "github.com/mutik-labs/mutik/internal/events"
	"github.com/mutik-labs/mutik/internal/logger"
	intMetrics "github.com/mutik-labs/mutik/internal/metrics"
	intState "github.com/mutik-labs/mutik/internal/state"
	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/events"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/state"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterState struct {
	Count int
	Tags  []string
}

// counting returns a listener and a pointer to its invocation count.
func counting() (state.Listener, *int) {
	n := 0
	return state.ListenerFunc(func() { n++ }), &n
}

func TestStore_GetSetUpdateFold(t *testing.T) {
	store := intState.NewMemoryStore(counterState{})
	require.NoError(t, store.Init())

	store.Set(counterState{Count: 5})
	store.Update(func(prev counterState) counterState { prev.Count *= 2; return prev })
	store.Mutate(func(d *counterState) { d.Count -= 3 })
	store.Update(func(prev counterState) counterState { prev.Count++; return prev })

	assert.Equal(t, 8, store.Get().Count)
	assert.Equal(t, uint64(4), store.Version())
}

func TestStore_ResetRestoresInitialReference(t *testing.T) {
	initial := map[string]interface{}{"count": 0}
	store := intState.NewMemoryStore(initial)
	l, calls := counting()
	store.On(l)

	store.Set(map[string]interface{}{"count": 7})
	store.Mutate(func(d *map[string]interface{}) { (*d)["count"] = 9 })
	store.Reset()

	assert.True(t, draft.Same(initial, store.Get()))
	assert.Equal(t, 3, *calls, "reset notifies like any other write")
}

func TestStore_OnThenOffNeverFires(t *testing.T) {
	store := intState.NewMemoryStore(0)
	l, calls := counting()
	store.On(l)
	store.Off(l)

	store.Set(1)
	store.Set(2)
	assert.Equal(t, 0, *calls)
	assert.Equal(t, 0, store.Len())
}

func TestStore_UnsubscribeFunc(t *testing.T) {
	store := intState.NewMemoryStore(0)
	l, calls := counting()
	unsubscribe := store.On(l)

	store.Set(1)
	unsubscribe()
	unsubscribe()
	store.Set(2)
	assert.Equal(t, 1, *calls)
}

func TestStore_DuplicateRegistration(t *testing.T) {
	store := intState.NewMemoryStore(0)
	l, calls := counting()
	store.On(l)
	store.On(l)
	require.Equal(t, 2, store.Len())

	store.Set(1)
	assert.Equal(t, 2, *calls)

	store.Off(l)
	store.Set(2)
	assert.Equal(t, 2, *calls, "a single Off removes every registration")
	assert.Equal(t, 0, store.Len())
}

func TestStore_ListenerFuncIdentity(t *testing.T) {
	store := intState.NewMemoryStore(0)
	fn := func() {}
	a := state.ListenerFunc(fn)
	b := state.ListenerFunc(fn)
	store.On(a)
	store.On(b)

	store.Off(a)
	assert.Equal(t, 1, store.Len(), "each ListenerFunc call is a distinct identity")
}

func TestStore_OffUnknownListenerIsNoOp(t *testing.T) {
	store := intState.NewMemoryStore(0)
	l, _ := counting()
	other, _ := counting()
	store.On(l)
	store.Off(other)
	assert.Equal(t, 1, store.Len())
}

func TestStore_SetSameValueNotifiesTwice(t *testing.T) {
	x := &counterState{Count: 1}
	store := intState.NewMemoryStore(x)
	l, calls := counting()
	store.On(l)

	store.Set(x)
	store.Set(x)
	assert.Equal(t, 2, *calls)
}

func TestStore_MutateCounts(t *testing.T) {
	store := intState.NewMemoryStore(map[string]interface{}{"count": 0})
	l, calls := counting()
	store.On(l)

	store.Mutate(func(d *map[string]interface{}) {
		(*d)["count"] = (*d)["count"].(int) + 1
	})
	assert.Equal(t, 1, store.Get()["count"])
	assert.Equal(t, 1, *calls)

	before := store.Get()
	version := store.Version()
	store.Mutate(func(d *map[string]interface{}) {})
	assert.Equal(t, 1, *calls, "no-op mutation does not notify")
	assert.True(t, draft.Same(before, store.Get()))
	assert.Equal(t, version, store.Version())
}

func TestStore_ProduceReplacement(t *testing.T) {
	store := intState.NewMemoryStore(counterState{Count: 1})
	l, calls := counting()
	store.On(l)

	store.Produce(func(d *counterState) (counterState, bool) {
		return counterState{Count: 42}, true
	})
	assert.Equal(t, 42, store.Get().Count)
	assert.Equal(t, 1, *calls)

	current := store.Get()
	store.Produce(func(d *counterState) (counterState, bool) { return current, true })
	assert.Equal(t, 1, *calls, "returning the current state is a no-op")
}

func TestStore_NotificationOrder(t *testing.T) {
	store := intState.NewMemoryStore(0)
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		store.On(state.ListenerFunc(func() { order = append(order, name) }))
	}
	store.Set(1)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestStore_ReentrantWriteIsDepthFirst(t *testing.T) {
	run := func() []string {
		store := intState.NewMemoryStore(0)
		var order []string
		store.On(state.ListenerFunc(func() {
			order = append(order, fmt.Sprintf("first:%d", store.Get()))
			if store.Get() == 1 {
				store.Set(2)
			}
		}))
		store.On(state.ListenerFunc(func() {
			order = append(order, fmt.Sprintf("second:%d", store.Get()))
		}))
		store.Set(1)
		return order
	}

	want := []string{"first:1", "first:2", "second:2", "second:2"}
	assert.Equal(t, want, run())
	// Ordering is deterministic across runs.
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, run())
	}
}

func TestStore_ReentrancyGuard(t *testing.T) {
	store := intState.NewMemoryStore(0)
	store.SetMaxReentrancy(5)
	runaway := state.ListenerFunc(func() { store.Set(store.Get() + 1) })
	store.On(runaway)

	var re *mutikerrors.ReentrancyError
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r)
			var ok bool
			re, ok = r.(*mutikerrors.ReentrancyError)
			require.True(t, ok, "panic value should be a ReentrancyError, got %T", r)
		}()
		store.Set(1)
	}()
	assert.Equal(t, 5, re.Depth)

	// Depth bookkeeping is restored, so the store keeps working.
	store.Off(runaway)
	l, calls := counting()
	store.On(l)
	store.Set(100)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, 100, store.Get())
}

func TestStore_ListenerAddedMidPassDoesNotFire(t *testing.T) {
	store := intState.NewMemoryStore(0)
	late, lateCalls := counting()
	store.On(state.ListenerFunc(func() { store.On(late) }))

	store.Set(1)
	assert.Equal(t, 0, *lateCalls)

	store.Off(late)
	store.Set(2)
	assert.Equal(t, 0, *lateCalls)
}

func TestStore_ListenerRemovedMidPassDoesNotFire(t *testing.T) {
	store := intState.NewMemoryStore(0)
	victim, victimCalls := counting()
	store.On(state.ListenerFunc(func() { store.Off(victim) }))
	store.On(victim)

	store.Set(1)
	assert.Equal(t, 0, *victimCalls)
	assert.Equal(t, 1, store.Len())
}

func TestStore_ListenerPanicPropagates(t *testing.T) {
	store := intState.NewMemoryStore(0)
	after, afterCalls := counting()
	store.On(state.ListenerFunc(func() { panic("boom") }))
	store.On(after)

	assert.PanicsWithValue(t, "boom", func() { store.Set(1) })
	assert.Equal(t, 1, store.Get(), "state is committed before listeners run")
	assert.Equal(t, 0, *afterCalls, "remaining listeners are skipped")

	// Nested depth was restored despite the panic.
	store.SetMaxReentrancy(1)
	assert.PanicsWithValue(t, "boom", func() { store.Set(2) })
}

func TestStore_PanicIsolation(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("debug", "json", &buf)
	bus := intEvents.NewChannelEventBus(16, log)

	store := intState.NewMemoryStore(0)
	store.SetName("isolated")
	store.SetLogger(log)
	store.SetEventBus(bus)
	store.SetPanicIsolation(true)
	require.NoError(t, store.Init())

	after, afterCalls := counting()
	store.On(state.ListenerFunc(func() { panic("boom") }))
	store.On(after)

	assert.NotPanics(t, func() { store.Set(1) })
	assert.Equal(t, 1, *afterCalls)
	assert.Contains(t, buf.String(), `"error_type":"ListenerPanicError"`)

	var seen []events.EventType
	bus.Close()
	for ev := range bus.GetChannel() {
		seen = append(seen, ev.Type)
	}
	assert.Contains(t, seen, events.ListenerPanicked)
	assert.Contains(t, seen, events.StoreCreated)
}

func TestStore_Metrics(t *testing.T) {
	provider := intMetrics.NewPrometheusRegistryProvider()
	store := intState.NewMemoryStore(map[string]interface{}{"n": 0})
	store.SetName("metered")
	store.SetMetricsRegistryProvider(provider)
	require.NoError(t, store.Init())

	collectors, err := intMetrics.NewStoreCollectors(provider.Registry())
	require.NoError(t, err, "second registration reuses the existing collectors")

	l, _ := counting()
	store.On(l)
	store.Set(map[string]interface{}{"n": 1})
	store.Mutate(func(d *map[string]interface{}) {})
	store.Mutate(func(d *map[string]interface{}) { (*d)["n"] = 2 })

	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.Commits.WithLabelValues("metered", "set")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.Commits.WithLabelValues("metered", "mutate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.SkippedMutations.WithLabelValues("metered")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collectors.Notifications.WithLabelValues("metered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.Listeners.WithLabelValues("metered")))
}
