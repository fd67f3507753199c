package util

import "reflect"

// visitKey identifies a reference-typed value during a copy. Slices carry
// their length because two slices may share a backing array.
type visitKey struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// CycleDetectionContext maps every map, slice and pointer already visited
// during a single DeepCopy to its copy. Revisiting returns the copy, which
// keeps cyclic graphs finite and preserves aliasing inside the copy.
type CycleDetectionContext map[visitKey]reflect.Value

var (
	genericMapType   = reflect.TypeOf(map[string]interface{}(nil))
	genericSliceType = reflect.TypeOf([]interface{}(nil))
)

// DeepCopy returns a deep copy of src with the same static type. Maps,
// slices, pointers, arrays, interfaces and exported struct fields are copied
// recursively. Unexported struct fields, funcs and chans are copied shallowly.
func DeepCopy[T any](src T) T {
	var dst T
	in := reflect.ValueOf(&src).Elem()
	reflect.ValueOf(&dst).Elem().Set(CopyValue(in, make(CycleDetectionContext)))
	return dst
}

// DeepCopyAny copies a dynamically typed value, returning nil for nil.
func DeepCopyAny(src interface{}) interface{} {
	return copyAny(src, make(CycleDetectionContext))
}

// CopyValue copies v using ctx for cycle detection. The returned value has
// v's type and is assignable wherever v is.
func CopyValue(v reflect.Value, ctx CycleDetectionContext) reflect.Value {
	if !v.IsValid() {
		return v
	}

	// Fast path for the shapes produced by YAML and JSON decoding.
	switch v.Type() {
	case genericMapType:
		if v.IsNil() {
			return v
		}
		key := visitKey{v.Pointer(), v.Type(), 0}
		if cpy, ok := ctx[key]; ok {
			return cpy
		}
		src := v.Interface().(map[string]interface{})
		dst := make(map[string]interface{}, len(src))
		out := reflect.ValueOf(dst)
		ctx[key] = out
		for k, val := range src {
			dst[k] = copyAny(val, ctx)
		}
		return out

	case genericSliceType:
		if v.IsNil() {
			return v
		}
		key := visitKey{v.Pointer(), v.Type(), v.Len()}
		if cpy, ok := ctx[key]; ok {
			return cpy
		}
		src := v.Interface().([]interface{})
		dst := make([]interface{}, len(src))
		out := reflect.ValueOf(dst)
		ctx[key] = out
		for i, val := range src {
			dst[i] = copyAny(val, ctx)
		}
		return out
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return v
		}
		key := visitKey{v.Pointer(), v.Type(), 0}
		if cpy, ok := ctx[key]; ok {
			return cpy
		}
		out := reflect.New(v.Type().Elem())
		ctx[key] = out
		out.Elem().Set(CopyValue(v.Elem(), ctx))
		return out

	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(CopyValue(v.Elem(), ctx))
		return out

	case reflect.Map:
		if v.IsNil() {
			return v
		}
		key := visitKey{v.Pointer(), v.Type(), 0}
		if cpy, ok := ctx[key]; ok {
			return cpy
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		ctx[key] = out
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), CopyValue(iter.Value(), ctx))
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		key := visitKey{v.Pointer(), v.Type(), v.Len()}
		if cpy, ok := ctx[key]; ok {
			return cpy
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		ctx[key] = out
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(CopyValue(v.Index(i), ctx))
		}
		return out

	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(CopyValue(v.Index(i), ctx))
		}
		return out

	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if !out.Field(i).CanSet() {
				continue
			}
			out.Field(i).Set(CopyValue(v.Field(i), ctx))
		}
		return out

	default:
		return v
	}
}

func copyAny(src interface{}, ctx CycleDetectionContext) interface{} {
	switch v := src.(type) {
	case nil:
		return nil
	case string, bool, int, int64, int32, int16, int8, uint, uint64, uint32, uint16, uint8, float64, float32:
		return v
	default:
		return CopyValue(reflect.ValueOf(src), ctx).Interface()
	}
}
