package bridge_test

import (
	"testing"

	"github.com/mutik-labs/mutik/internal/bridge"
	"github.com/mutik-labs/mutik/internal/draft"
	intState "github.com/mutik-labs/mutik/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Count int
	Label string
}

type recordingObserver struct {
	seen []uint64
}

func (o *recordingObserver) Observe(source any, version uint64) {
	o.seen = append(o.seen, version)
}

func countOf(s counter) int { return s.Count }

func TestSubscription_InvalidatesOnlyOnProjectionChange(t *testing.T) {
	store := intState.NewMemoryStore(counter{})
	invalidations := 0
	sub := bridge.Subscribe[counter, int](store, countOf, draft.Same[int], func() { invalidations++ })
	require.Equal(t, 0, sub.Read(nil))

	store.Set(counter{Count: 0, Label: "relabel"})
	assert.Equal(t, 0, invalidations, "unrelated field change is filtered")

	store.Set(counter{Count: 1})
	assert.Equal(t, 1, invalidations)

	store.Set(counter{Count: 1, Label: "again"})
	assert.Equal(t, 1, invalidations)
}

func TestSubscription_ReadIsFreshAndObserved(t *testing.T) {
	store := intState.NewMemoryStore(counter{Count: 3})
	sub := bridge.Subscribe[counter, int](store, countOf, draft.Same[int], func() {})
	obs := &recordingObserver{}

	assert.Equal(t, 3, sub.Read(obs))
	store.Set(counter{Count: 4})
	assert.Equal(t, 4, sub.Read(obs), "reads follow the store generation")
	assert.Equal(t, []uint64{0, 1}, obs.seen)
}

func TestSubscription_SetSnapshot(t *testing.T) {
	store := intState.NewMemoryStore(counter{Count: 2})
	invalidations := 0
	sub := bridge.Subscribe[counter, int](store, countOf, draft.Same[int], func() { invalidations++ })
	sub.Read(nil)

	sub.SetSnapshot(func(s counter) int { return s.Count * 10 })
	assert.Equal(t, 20, sub.Read(nil))

	store.Set(counter{Count: 2})
	assert.Equal(t, 0, invalidations, "new projection compared against its own last value")
}

func TestSubscription_CustomEquality(t *testing.T) {
	store := intState.NewMemoryStore(counter{Label: "a"})
	invalidations := 0
	sameLength := func(a, b string) bool { return len(a) == len(b) }
	sub := bridge.Subscribe[counter, string](store, func(s counter) string { return s.Label }, sameLength, func() { invalidations++ })
	sub.Read(nil)

	store.Set(counter{Label: "b"})
	assert.Equal(t, 0, invalidations)
	store.Set(counter{Label: "bb"})
	assert.Equal(t, 1, invalidations)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	store := intState.NewMemoryStore(counter{})
	invalidations := 0
	sub := bridge.Subscribe[counter, int](store, countOf, draft.Same[int], func() { invalidations++ })
	require.Equal(t, 1, store.Len())

	sub.Close()
	sub.Close()
	assert.True(t, sub.Closed())
	assert.Equal(t, 0, store.Len())

	store.Set(counter{Count: 9})
	assert.Equal(t, 0, invalidations)
}

func TestSubscription_NotifiedBeforeFirstRead(t *testing.T) {
	store := intState.NewMemoryStore(counter{})
	invalidations := 0
	bridge.Subscribe[counter, int](store, countOf, draft.Same[int], func() { invalidations++ })

	store.Set(counter{})
	assert.Equal(t, 1, invalidations, "nothing delivered yet, so any commit invalidates")
}

func TestSubscription_SelectorRunsOncePerCommit(t *testing.T) {
	store := intState.NewMemoryStore(counter{})
	calls := 0
	selector := func(s counter) int {
		calls++
		return s.Count
	}
	sub := bridge.Subscribe[counter, int](store, selector, draft.Same[int], func() {})
	sub.Read(nil)
	require.Equal(t, 1, calls)

	store.Set(counter{Count: 1})
	assert.Equal(t, 1, sub.Read(nil))
	assert.Equal(t, 2, calls, "notification and read share one projection")

	sub.Read(nil)
	assert.Equal(t, 2, calls)

	sub.SetSnapshot(selector)
	sub.Read(nil)
	assert.Equal(t, 3, calls, "a replaced snapshot function is projected afresh")
}
