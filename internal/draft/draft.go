// Package draft implements copy-on-write updates over immutable values.
//
// A recipe edits a private deep copy of the base value. The copy is then
// finalized against the base: every subtree the recipe left structurally
// unchanged is swapped back for the corresponding base subtree, so the result
// shares everything it did not rewrite and a recipe that changes nothing
// yields the base value itself. Neither the base nor the draft is written to
// during finalization; changed containers are rebuilt.
package draft

import (
	"reflect"

	"github.com/mutik-labs/mutik/internal/util"
)

// Recipe edits the draft in place, or returns a replacement value with
// replace set to true.
type Recipe[S any] func(draft *S) (next S, replace bool)

// Produce runs recipe against a draft of base and returns the finalized
// result. changed is false exactly when the result is base.
func Produce[S any](base S, recipe Recipe[S]) (next S, changed bool) {
	d := util.DeepCopy(base)
	replacement, replace := recipe(&d)
	if replace {
		if Same(base, replacement) {
			return base, false
		}
		return replacement, true
	}

	rb, rd := reflect.ValueOf(&base).Elem(), reflect.ValueOf(&d).Elem()
	f := newFinalizer(rb, rd)
	out, changed := f.value(rb, rd)
	if !changed {
		return base, false
	}
	reflect.ValueOf(&next).Elem().Set(out)
	return next, true
}

// Mutate is Produce for recipes that only edit the draft.
func Mutate[S any](base S, fn func(draft *S)) (S, bool) {
	return Produce(base, func(d *S) (S, bool) {
		fn(d)
		var zero S
		return zero, false
	})
}

type pairKey struct {
	base, draft uintptr
	typ         reflect.Type
	blen, dlen  int
}

// pairNode is one reference pair (pointer, map or slice) of the base/draft
// walk. local records a difference reachable without crossing another
// reference pair; edges are the reference pairs directly beneath it.
type pairNode struct {
	local bool
	edges []pairKey
}

// finalizer rebuilds the draft against the base in two steps. analyze walks
// the pair graph once, cycles included, and marks every pair from which a
// difference is reachable. value then rebuilds only marked pairs, allocating
// each output before descending so back-references land on the new value.
type finalizer struct {
	nodes   map[pairKey]*pairNode
	changed map[pairKey]bool
	built   map[pairKey]reflect.Value
}

func newFinalizer(base, d reflect.Value) *finalizer {
	f := &finalizer{
		nodes:   make(map[pairKey]*pairNode),
		changed: make(map[pairKey]bool),
		built:   make(map[pairKey]reflect.Value),
	}
	f.scan(base, d, &pairNode{})
	f.propagate()
	return f
}

func refKey(base, d reflect.Value) pairKey {
	k := pairKey{base: base.Pointer(), draft: d.Pointer(), typ: base.Type()}
	if base.Kind() == reflect.Slice {
		k.blen, k.dlen = base.Len(), d.Len()
	}
	return k
}

// scan records differences found inline under n and the reference pairs
// reachable from it.
func (f *finalizer) scan(base, d reflect.Value, n *pairNode) {
	switch base.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if base.IsNil() || d.IsNil() {
			if base.IsNil() != d.IsNil() {
				n.local = true
			}
			return
		}
		if base.Pointer() == d.Pointer() && (base.Kind() != reflect.Slice || base.Len() == d.Len()) {
			return
		}
		key := refKey(base, d)
		n.edges = append(n.edges, key)
		if _, seen := f.nodes[key]; seen {
			return
		}
		m := &pairNode{}
		f.nodes[key] = m
		f.scanRef(base, d, m)

	case reflect.Interface:
		if base.IsNil() || d.IsNil() {
			if base.IsNil() != d.IsNil() {
				n.local = true
			}
			return
		}
		if base.Elem().Type() != d.Elem().Type() {
			n.local = true
			return
		}
		f.scan(base.Elem(), d.Elem(), n)

	case reflect.Array:
		for i := 0; i < base.Len(); i++ {
			f.scan(base.Index(i), d.Index(i), n)
		}

	case reflect.Struct:
		for i := 0; i < base.NumField(); i++ {
			if !base.Type().Field(i).IsExported() {
				if !sameValue(base.Field(i), d.Field(i)) {
					n.local = true
				}
				continue
			}
			f.scan(base.Field(i), d.Field(i), n)
		}

	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if base.Pointer() != d.Pointer() {
			n.local = true
		}

	default:
		if !scalarEqual(base, d) {
			n.local = true
		}
	}
}

func (f *finalizer) scanRef(base, d reflect.Value, m *pairNode) {
	switch base.Kind() {
	case reflect.Ptr:
		f.scan(base.Elem(), d.Elem(), m)
	case reflect.Map:
		if base.Len() != d.Len() {
			m.local = true
		}
		iter := d.MapRange()
		for iter.Next() {
			bv := base.MapIndex(iter.Key())
			if !bv.IsValid() {
				m.local = true
				continue
			}
			f.scan(bv, iter.Value(), m)
		}
	case reflect.Slice:
		if base.Len() != d.Len() {
			m.local = true
		}
		for i := 0; i < d.Len() && i < base.Len(); i++ {
			f.scan(base.Index(i), d.Index(i), m)
		}
	}
}

// propagate marks every pair that reaches a locally changed pair.
func (f *finalizer) propagate() {
	for key, n := range f.nodes {
		f.changed[key] = n.local
	}
	for grew := true; grew; {
		grew = false
		for key, n := range f.nodes {
			if f.changed[key] {
				continue
			}
			for _, e := range n.edges {
				if f.changed[e] {
					f.changed[key] = true
					grew = true
					break
				}
			}
		}
	}
}

func (f *finalizer) value(base, d reflect.Value) (reflect.Value, bool) {
	switch base.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if base.IsNil() || d.IsNil() {
			return f.nilPair(base, d)
		}
		if base.Pointer() == d.Pointer() && (base.Kind() != reflect.Slice || base.Len() == d.Len()) {
			return base, false
		}
		key := refKey(base, d)
		if !f.changed[key] {
			return base, false
		}
		if out, ok := f.built[key]; ok {
			return out, true
		}
		switch base.Kind() {
		case reflect.Ptr:
			out := reflect.New(base.Type().Elem())
			f.built[key] = out
			elem, _ := f.value(base.Elem(), d.Elem())
			out.Elem().Set(elem)
			return out, true
		case reflect.Map:
			return f.mapValue(key, base, d), true
		default:
			return f.sliceValue(key, base, d), true
		}

	case reflect.Interface:
		if base.IsNil() || d.IsNil() {
			return f.nilPair(base, d)
		}
		be, de := base.Elem(), d.Elem()
		if be.Type() != de.Type() {
			return d, true
		}
		elem, changed := f.value(be, de)
		if !changed {
			return base, false
		}
		out := reflect.New(base.Type()).Elem()
		out.Set(elem)
		return out, true

	case reflect.Array:
		out := reflect.New(base.Type()).Elem()
		changed := false
		for i := 0; i < base.Len(); i++ {
			v, c := f.value(base.Index(i), d.Index(i))
			changed = changed || c
			out.Index(i).Set(v)
		}
		if !changed {
			return base, false
		}
		return out, true

	case reflect.Struct:
		return f.structValue(base, d)

	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if base.Pointer() == d.Pointer() {
			return base, false
		}
		return d, true

	default:
		if scalarEqual(base, d) {
			return base, false
		}
		return d, true
	}
}

func (f *finalizer) nilPair(base, d reflect.Value) (reflect.Value, bool) {
	if base.IsNil() && d.IsNil() {
		return base, false
	}
	return d, true
}

// mapValue registers the output map before filling it, so a value that
// refers back to this map gets the rebuilt one.
func (f *finalizer) mapValue(key pairKey, base, d reflect.Value) reflect.Value {
	out := reflect.MakeMapWithSize(base.Type(), d.Len())
	f.built[key] = out
	iter := d.MapRange()
	for iter.Next() {
		k, dv := iter.Key(), iter.Value()
		if bv := base.MapIndex(k); bv.IsValid() {
			v, _ := f.value(bv, dv)
			out.SetMapIndex(k, v)
			continue
		}
		out.SetMapIndex(k, dv)
	}
	return out
}

func (f *finalizer) sliceValue(key pairKey, base, d reflect.Value) reflect.Value {
	out := reflect.MakeSlice(base.Type(), d.Len(), d.Len())
	f.built[key] = out
	for i := 0; i < d.Len(); i++ {
		if i >= base.Len() {
			out.Index(i).Set(d.Index(i))
			continue
		}
		v, _ := f.value(base.Index(i), d.Index(i))
		out.Index(i).Set(v)
	}
	return out
}

// structValue starts from the draft struct so unexported fields, which the
// draft holds shallowly, carry over; exported fields are finalized one by one.
func (f *finalizer) structValue(base, d reflect.Value) (reflect.Value, bool) {
	out := reflect.New(base.Type()).Elem()
	out.Set(d)
	changed := false
	for i := 0; i < base.NumField(); i++ {
		if !base.Type().Field(i).IsExported() {
			if !sameValue(base.Field(i), d.Field(i)) {
				changed = true
			}
			continue
		}
		v, c := f.value(base.Field(i), d.Field(i))
		changed = changed || c
		out.Field(i).Set(v)
	}
	if !changed {
		return base, false
	}
	return out, true
}
