package path_test

import (
	"context"
	"testing"

	"github.com/mutik-labs/mutik/actions/path"
	"github.com/mutik-labs/mutik/internal/action"
	intState "github.com/mutik-labs/mutik/internal/state"
	mutikaction "github.com/mutik-labs/mutik/pkg/mutik/v1/action"
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
	for _, n := range []string{"set_path", "delete_path", "append_path", "replace"} {
		assert.Contains(t, names, n)
	}
}

func TestSetPath(t *testing.T) {
	ctx := context.Background()
	user := map[string]interface{}{"name": "ada"}
	store, calls := newStore(mutikaction.State{"user": user, "todos": []interface{}{}})

	require.NoError(t, path.NewSetPath().Apply(ctx, store, map[string]interface{}{
		"path":  "settings.theme",
		"value": "dark",
	}))
	assert.Equal(t, 1, *calls)
	assert.Equal(t, "dark", store.Get()["settings"].(map[string]interface{})["theme"])
	assert.Equal(t, "ada", store.Get()["user"].(map[string]interface{})["name"])

	require.NoError(t, path.NewSetPath().Apply(ctx, store, map[string]interface{}{
		"path":  "settings.theme",
		"value": "dark",
	}))
	assert.Equal(t, 1, *calls, "writing the current value is skipped")

	err := path.NewSetPath().Apply(ctx, store, map[string]interface{}{
		"path":   "missing.key",
		"value":  1,
		"create": false,
	})
	assert.Error(t, err)
	assert.Error(t, path.NewSetPath().Apply(ctx, store, map[string]interface{}{"path": "x"}))
}

func TestSetPath_ConvertsYAMLMaps(t *testing.T) {
	store, _ := newStore(mutikaction.State{})
	require.NoError(t, path.NewSetPath().Apply(context.Background(), store, map[string]interface{}{
		"path":  "user",
		"value": map[interface{}]interface{}{"name": "grace", "langs": []interface{}{"cobol"}},
	}))
	user, ok := store.Get()["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "grace", user["name"])
}

func TestDeletePath(t *testing.T) {
	ctx := context.Background()
	store, calls := newStore(mutikaction.State{"a": 1, "b": 2})

	require.NoError(t, path.NewDeletePath().Apply(ctx, store, map[string]interface{}{"path": "a"}))
	assert.Equal(t, mutikaction.State{"b": 2}, store.Get())
	assert.Equal(t, 1, *calls)

	require.NoError(t, path.NewDeletePath().Apply(ctx, store, map[string]interface{}{"path": "a"}))
	assert.Equal(t, 1, *calls, "deleting a missing key is skipped")
}

func TestAppendPath(t *testing.T) {
	ctx := context.Background()
	store, calls := newStore(mutikaction.State{"todos": []interface{}{"a"}})
	before := store.Get()

	require.NoError(t, path.NewAppendPath().Apply(ctx, store, map[string]interface{}{"path": "todos", "value": "b"}))
	assert.Equal(t, []interface{}{"a", "b"}, store.Get()["todos"])
	assert.Equal(t, []interface{}{"a"}, before["todos"])
	assert.Equal(t, 1, *calls)
}

func TestReplace_AlwaysNotifies(t *testing.T) {
	ctx := context.Background()
	store, calls := newStore(mutikaction.State{"a": 1})
	params := map[string]interface{}{"value": map[string]interface{}{"a": 1}}

	require.NoError(t, path.NewReplace().Apply(ctx, store, params))
	require.NoError(t, path.NewReplace().Apply(ctx, store, params))
	assert.Equal(t, 2, *calls)
	assert.Equal(t, uint64(2), store.Version())

	assert.Error(t, path.NewReplace().Apply(ctx, store, map[string]interface{}{"value": "scalar"}))
}

func TestFailedEditsDoNotCommit(t *testing.T) {
	ctx := context.Background()
	cases := map[string]struct {
		act    mutikaction.Action
		params map[string]interface{}
	}{
		"set_path without create": {path.NewSetPath(), map[string]interface{}{"path": "missing.key", "value": 1, "create": false}},
		"set_path through scalar": {path.NewSetPath(), map[string]interface{}{"path": "count.x", "value": 1}},
		"append_path to scalar":   {path.NewAppendPath(), map[string]interface{}{"path": "count", "value": 1}},
		"delete_path in scalar":   {path.NewDeletePath(), map[string]interface{}{"path": "count.x"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			store, calls := newStore(mutikaction.State{"count": 5, "todos": []interface{}{}})
			assert.Error(t, tc.act.Apply(ctx, store, tc.params))
			assert.Equal(t, uint64(0), store.Version())
			assert.Equal(t, 0, *calls)
		})
	}
}
