// Package docpath addresses values inside nested documents of
// map[string]interface{} and []interface{} using dot-separated paths such as
// "todos.0.title".
package docpath

import (
	"fmt"
	"strconv"
	"strings"

	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"
)

// Split parses a dot-separated path. Empty paths and empty segments are
// rejected.
func Split(path string) ([]string, error) {
	if path == "" {
		return nil, mutikerrors.NewValidationError("path cannot be empty", nil)
	}
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil, mutikerrors.NewValidationError(fmt.Sprintf("path '%s' contains an empty segment", path), nil)
		}
	}
	return segments, nil
}

// Get returns the value at path and whether it exists.
func Get(doc map[string]interface{}, path string) (interface{}, bool) {
	segments, err := Split(path)
	if err != nil {
		return nil, false
	}
	var current interface{} = doc
	for _, seg := range segments {
		next, ok := child(current, seg)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func child(container interface{}, seg string) (interface{}, bool) {
	switch c := container.(type) {
	case map[string]interface{}:
		v, ok := c[seg]
		return v, ok
	case []interface{}:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	default:
		return nil, false
	}
}

// Set writes value at path in place. Missing intermediate maps are created
// when create is true. List segments must address an existing index.
func Set(doc map[string]interface{}, path string, value interface{}, create bool) error {
	segments, err := Split(path)
	if err != nil {
		return err
	}
	var current interface{} = doc
	for i, seg := range segments {
		last := i == len(segments)-1
		switch c := current.(type) {
		case map[string]interface{}:
			if last {
				c[seg] = value
				return nil
			}
			next, ok := c[seg]
			if !ok || next == nil {
				if !create {
					return notFound(path, segments[:i+1])
				}
				next = make(map[string]interface{})
				c[seg] = next
			}
			current = next
		case []interface{}:
			idx, err := index(c, seg, path)
			if err != nil {
				return err
			}
			if last {
				c[idx] = value
				return nil
			}
			current = c[idx]
		default:
			return notContainer(path, segments[:i])
		}
	}
	return nil
}

// Delete removes the map key or list element at path in place. It reports
// whether anything was removed. Removing a list element shifts the rest
// down, which replaces the list in its parent.
func Delete(doc map[string]interface{}, path string) (bool, error) {
	segments, err := Split(path)
	if err != nil {
		return false, err
	}
	parentPath, leaf := segments[:len(segments)-1], segments[len(segments)-1]

	var grand interface{}
	var grandSeg string
	var parent interface{} = doc
	for _, seg := range parentPath {
		next, ok := child(parent, seg)
		if !ok {
			return false, nil
		}
		grand, grandSeg, parent = parent, seg, next
	}

	switch p := parent.(type) {
	case map[string]interface{}:
		if _, ok := p[leaf]; !ok {
			return false, nil
		}
		delete(p, leaf)
		return true, nil
	case []interface{}:
		idx, err := strconv.Atoi(leaf)
		if err != nil || idx < 0 || idx >= len(p) {
			return false, nil
		}
		shortened := append(p[:idx:idx], p[idx+1:]...)
		replaceChild(grand, grandSeg, shortened)
		return true, nil
	default:
		return false, notContainer(path, parentPath)
	}
}

func replaceChild(grand interface{}, seg string, value interface{}) {
	switch g := grand.(type) {
	case map[string]interface{}:
		g[seg] = value
	case []interface{}:
		i, _ := strconv.Atoi(seg)
		g[i] = value
	}
}

// Append adds value to the end of the list at path. A missing path is
// created as a one-element list.
func Append(doc map[string]interface{}, path string, value interface{}) error {
	current, ok := Get(doc, path)
	if !ok || current == nil {
		return Set(doc, path, []interface{}{value}, true)
	}
	list, isList := current.([]interface{})
	if !isList {
		return mutikerrors.NewValidationError(fmt.Sprintf("value at '%s' is %T, not a list", path, current), nil)
	}
	// A fresh backing array keeps earlier states that share the list intact.
	grown := make([]interface{}, len(list), len(list)+1)
	copy(grown, list)
	return Set(doc, path, append(grown, value), false)
}

// With returns a copy of doc with value written at path, leaving doc
// untouched. Only the containers along path are copied; every other
// subtree is shared with doc. Missing intermediate maps are created.
func With(doc map[string]interface{}, path string, value interface{}) (map[string]interface{}, error) {
	segments, err := Split(path)
	if err != nil {
		return nil, err
	}
	out, err := with(doc, segments, value, path, 0)
	if err != nil {
		return nil, err
	}
	return out.(map[string]interface{}), nil
}

func with(container interface{}, segments []string, value interface{}, path string, depth int) (interface{}, error) {
	seg := segments[depth]
	last := depth == len(segments)-1
	switch c := container.(type) {
	case nil:
		return with(map[string]interface{}{}, segments, value, path, depth)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(c)+1)
		for k, v := range c {
			out[k] = v
		}
		if last {
			out[seg] = value
			return out, nil
		}
		next, err := with(c[seg], segments, value, path, depth+1)
		if err != nil {
			return nil, err
		}
		out[seg] = next
		return out, nil
	case []interface{}:
		idx, err := index(c, seg, path)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, len(c))
		copy(out, c)
		if last {
			out[idx] = value
			return out, nil
		}
		next, err := with(c[idx], segments, value, path, depth+1)
		if err != nil {
			return nil, err
		}
		out[idx] = next
		return out, nil
	default:
		return nil, notContainer(path, segments[:depth])
	}
}

func index(list []interface{}, seg, path string) (int, error) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= len(list) {
		return 0, mutikerrors.NewValidationError(fmt.Sprintf("path '%s': '%s' is not an index of a list of length %d", path, seg, len(list)), nil)
	}
	return i, nil
}

func notFound(path string, prefix []string) error {
	return mutikerrors.NewValidationError(fmt.Sprintf("path '%s': '%s' does not exist", path, strings.Join(prefix, ".")), nil)
}

func notContainer(path string, prefix []string) error {
	at := strings.Join(prefix, ".")
	if at == "" {
		at = "<root>"
	}
	return mutikerrors.NewValidationError(fmt.Sprintf("path '%s': value at '%s' is not a map or list", path, at), nil)
}
