package state

import (
	"fmt"
	"testing"

	"github.com/mutik-labs/mutik/internal/util"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/state"
)

// benchmarkResult keeps the compiler from eliding benchmarked calls.
var benchmarkResult interface{}

func createNestedMap(depth, width int) map[string]interface{} {
	if depth <= 0 {
		return map[string]interface{}{"leaf_key": "leaf_value"}
	}
	m := make(map[string]interface{}, width)
	for i := 0; i < width; i++ {
		m[fmt.Sprintf("key_d%d_w%d", depth, i)] = createNestedMap(depth-1, width)
	}
	return m
}

var largeNestedMap = createNestedMap(4, 10)

func newBenchStore(listeners int) *MemoryStore[map[string]interface{}] {
	s := NewMemoryStore(largeNestedMap)
	for i := 0; i < listeners; i++ {
		s.On(state.ListenerFunc(func() {}))
	}
	return s
}

// BenchmarkSet_Replace is the baseline: a wholesale replace plus fan-out.
func BenchmarkSet_Replace(b *testing.B) {
	s := newBenchStore(10)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Set(largeNestedMap)
	}
}

// BenchmarkMutate_LeafWrite measures a draft round trip that changes one top-level key.
func BenchmarkMutate_LeafWrite(b *testing.B) {
	s := newBenchStore(10)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Mutate(func(d *map[string]interface{}) { (*d)["counter"] = i })
	}
	benchmarkResult = s.Get()
}

// BenchmarkMutate_NoOp measures the cost of proving a recipe changed nothing.
func BenchmarkMutate_NoOp(b *testing.B) {
	s := newBenchStore(10)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Mutate(func(d *map[string]interface{}) {})
	}
}

// BenchmarkDeepCopy_Draft isolates the draft construction step.
func BenchmarkDeepCopy_Draft(b *testing.B) {
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		benchmarkResult = util.DeepCopy(largeNestedMap)
	}
}
