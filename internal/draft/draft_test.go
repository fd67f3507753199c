package draft_test

import (
	"math"
	"testing"

	"github.com/mutik-labs/mutik/internal/draft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   int
	Text string
	Tags []string
}

type appState struct {
	Title string
	Items []*item
	Meta  map[string]*item
	Count int
	note  *item
}

func newAppState() appState {
	a := &item{ID: 1, Text: "a", Tags: []string{"x"}}
	b := &item{ID: 2, Text: "b"}
	return appState{
		Title: "todo",
		Items: []*item{a, b},
		Meta:  map[string]*item{"first": a},
		note:  &item{ID: 99},
	}
}

func TestMutate_NoOpReturnsBase(t *testing.T) {
	base := newAppState()
	next, changed := draft.Mutate(base, func(d *appState) {})

	assert.False(t, changed)
	assert.True(t, draft.Same(base, next))
}

func TestMutate_WriteSameValueIsNoOp(t *testing.T) {
	base := newAppState()
	next, changed := draft.Mutate(base, func(d *appState) {
		d.Title = "todo"
		d.Items[0].Text = "a"
	})
	assert.False(t, changed)
	assert.True(t, draft.Same(base, next))
}

func TestMutate_StructuralSharing(t *testing.T) {
	base := newAppState()
	next, changed := draft.Mutate(base, func(d *appState) {
		d.Items[1].Text = "B"
	})
	require.True(t, changed)

	assert.Equal(t, "B", next.Items[1].Text)
	assert.Equal(t, "b", base.Items[1].Text, "base is untouched")
	assert.NotSame(t, base.Items[1], next.Items[1])

	assert.Same(t, base.Items[0], next.Items[0], "untouched element is shared")
	assert.Same(t, base.Meta["first"], next.Meta["first"])
	assert.True(t, draft.Same(base.Meta, next.Meta), "untouched map is shared")
	assert.Same(t, base.note, next.note, "unexported field carries over")
}

func TestMutate_AppendAndDelete(t *testing.T) {
	base := newAppState()
	next, changed := draft.Mutate(base, func(d *appState) {
		d.Items = append(d.Items, &item{ID: 3, Text: "c"})
		delete(d.Meta, "first")
		d.Count++
	})
	require.True(t, changed)

	assert.Len(t, base.Items, 2)
	assert.Len(t, next.Items, 3)
	assert.Same(t, base.Items[0], next.Items[0])
	assert.Same(t, base.Items[1], next.Items[1])
	assert.Contains(t, base.Meta, "first")
	assert.NotContains(t, next.Meta, "first")
	assert.Equal(t, 1, next.Count)
}

func TestMutate_GenericMaps(t *testing.T) {
	base := map[string]interface{}{
		"count": 0,
		"user":  map[string]interface{}{"name": "ann"},
		"list":  []interface{}{1, 2},
	}
	next, changed := draft.Mutate(base, func(d *map[string]interface{}) {
		(*d)["count"] = 1
	})
	require.True(t, changed)
	assert.Equal(t, 0, base["count"])
	assert.Equal(t, 1, next["count"])
	assert.True(t, draft.Same(base["user"], next["user"]))
	assert.True(t, draft.Same(base["list"], next["list"]))

	again, changed := draft.Mutate(next, func(d *map[string]interface{}) {
		(*d)["count"] = 1
	})
	assert.False(t, changed)
	assert.True(t, draft.Same(next, again))
}

type ring struct {
	Value int
	Next  *ring
}

func TestMutate_Cycle(t *testing.T) {
	a := &ring{Value: 1}
	a.Next = &ring{Value: 2, Next: a}

	next, changed := draft.Mutate(a, func(d **ring) {})
	assert.False(t, changed)
	assert.Same(t, a, next)

	next, changed = draft.Mutate(a, func(d **ring) { (*d).Value = 10 })
	require.True(t, changed)
	assert.Equal(t, 10, next.Value)
	assert.Equal(t, 2, next.Next.Value)
	assert.Same(t, next, next.Next.Next, "the rebuilt ring closes on the new head")
	assert.Equal(t, 1, a.Value)
	assert.Same(t, a, a.Next.Next)
	assert.NotSame(t, a.Next, next.Next, "a node pointing at a rebuilt node is rebuilt")
}

func TestMutate_SelfCycle(t *testing.T) {
	self := &ring{Value: 1}
	self.Next = self

	next, changed := draft.Mutate(self, func(d **ring) { (*d).Value = 2 })
	require.True(t, changed)
	assert.Equal(t, 2, next.Value)
	assert.Same(t, next, next.Next)
	assert.Equal(t, 2, next.Next.Value)
	assert.Equal(t, 1, self.Value)
	assert.Same(t, self, self.Next)
}

func TestMutate_UnchangedCycleIsShared(t *testing.T) {
	type holder struct {
		Ring  *ring
		Count int
	}
	r := &ring{Value: 1}
	r.Next = &ring{Value: 2, Next: r}
	base := holder{Ring: r}

	next, changed := draft.Mutate(base, func(d *holder) { d.Count = 1 })
	require.True(t, changed)
	assert.Equal(t, 1, next.Count)
	assert.Same(t, r, next.Ring)
}

func TestProduce_Replace(t *testing.T) {
	base := newAppState()

	next, changed := draft.Produce(base, func(d *appState) (appState, bool) {
		return appState{Title: "fresh"}, true
	})
	assert.True(t, changed)
	assert.Equal(t, "fresh", next.Title)

	same, changed := draft.Produce(base, func(d *appState) (appState, bool) {
		d.Title = "ignored"
		return base, true
	})
	assert.False(t, changed)
	assert.True(t, draft.Same(base, same))
}

func TestSame(t *testing.T) {
	m := map[string]int{"a": 1}
	s := []int{1, 2, 3}
	p := &item{}

	assert.True(t, draft.Same(m, m))
	assert.False(t, draft.Same(m, map[string]int{"a": 1}))
	assert.True(t, draft.Same(s, s))
	assert.False(t, draft.Same(s, s[:2]))
	assert.False(t, draft.Same(s, []int{1, 2, 3}))
	assert.True(t, draft.Same(p, p))
	assert.False(t, draft.Same(p, &item{}))

	assert.True(t, draft.Same(math.NaN(), math.NaN()))
	assert.False(t, draft.Same(0.0, math.Copysign(0, -1)))

	var x, y interface{}
	assert.True(t, draft.Same(x, y))
	assert.True(t, draft.Same[interface{}](1, 1))
	assert.False(t, draft.Same[interface{}](1, int64(1)))
	assert.True(t, draft.Same(item{ID: 1}, item{ID: 1}))
}

func BenchmarkMutate_SingleField(b *testing.B) {
	base := map[string]interface{}{}
	for i := 0; i < 100; i++ {
		base[string(rune('a'+i%26))+string(rune('a'+i/26))] = map[string]interface{}{"v": i}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = draft.Mutate(base, func(d *map[string]interface{}) {
			(*d)["aa"] = i
		})
	}
}

func BenchmarkMutate_NoOp(b *testing.B) {
	base := newAppState()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = draft.Mutate(base, func(d *appState) {})
	}
}
