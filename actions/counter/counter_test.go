package counter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mutik-labs/mutik/actions/counter"
	"github.com/mutik-labs/mutik/internal/action"
	intState "github.com/mutik-labs/mutik/internal/state"
	mutikaction "github.com/mutik-labs/mutik/pkg/mutik/v1/action"
	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(initial mutikaction.State) (*intState.MemoryStore[mutikaction.State], *int) {
	s := intState.NewMemoryStore(initial)
	calls := 0
	s.On(state.ListenerFunc(func() { calls++ }))
	return s, &calls
}

func TestRegistered(t *testing.T) {
	names := action.DefaultRegistry().List()
	for _, n := range []string{"increment", "decrement", "reset"} {
		assert.Contains(t, names, n)
	}
}

func TestIncrement(t *testing.T) {
	ctx := context.Background()
	initial := mutikaction.State{"count": 0, "other": map[string]interface{}{"k": "v"}}
	store, calls := newStore(initial)

	require.NoError(t, counter.NewIncrement().Apply(ctx, store, nil))
	require.NoError(t, counter.NewIncrement().Apply(ctx, store, map[string]interface{}{"by": 5}))
	assert.Equal(t, 6, store.Get()["count"])
	assert.Equal(t, 2, *calls)
	assert.Equal(t, 0, initial["count"], "the initial document is never written")

	require.NoError(t, counter.NewIncrement().Apply(ctx, store, map[string]interface{}{"path": "stats.ratio", "by": 0.5}))
	assert.Equal(t, 0.5, store.Get()["stats"].(map[string]interface{})["ratio"])
}

func TestIncrement_InvalidTarget(t *testing.T) {
	store, calls := newStore(mutikaction.State{"count": "three"})
	err := counter.NewIncrement().Apply(context.Background(), store, nil)
	var ve *mutikerrors.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, 0, *calls)

	err = counter.NewIncrement().Apply(context.Background(), store, map[string]interface{}{"step": 1})
	assert.True(t, errors.As(err, &ve), "unknown parameters are rejected")
}

func TestFailedStepsDoNotCommit(t *testing.T) {
	ctx := context.Background()
	params := map[string]interface{}{"path": "count.x"}
	for name, act := range map[string]mutikaction.Action{
		"increment": counter.NewIncrement(),
		"decrement": counter.NewDecrement(),
	} {
		t.Run(name, func(t *testing.T) {
			store, calls := newStore(mutikaction.State{"count": 5})
			before := store.Get()

			err := act.Apply(ctx, store, params)
			var ve *mutikerrors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, uint64(0), store.Version())
			assert.Equal(t, 0, *calls)
			assert.Equal(t, before, store.Get())
		})
	}
}

func TestDecrement(t *testing.T) {
	ctx := context.Background()
	store, calls := newStore(mutikaction.State{"count": 3})

	require.NoError(t, counter.NewDecrement().Apply(ctx, store, map[string]interface{}{"by": 2}))
	assert.Equal(t, 1, store.Get()["count"])
	assert.Equal(t, 1, *calls)

	before := store.Get()
	require.NoError(t, counter.NewDecrement().Apply(ctx, store, map[string]interface{}{"by": 0}))
	assert.Equal(t, 1, *calls, "a zero step is a no-op mutation")
	assert.Equal(t, before, store.Get())
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(mutikaction.State{"count": 0})
	require.NoError(t, counter.NewIncrement().Apply(ctx, store, nil))
	require.NoError(t, counter.NewReset().Apply(ctx, store, nil))
	assert.Equal(t, 0, store.Get()["count"])

	assert.Error(t, counter.NewReset().Apply(ctx, store, map[string]interface{}{"path": "x"}))
}
