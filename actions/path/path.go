// Package path provides structural actions over a document store: writing,
// deleting and appending at a path, and replacing the whole document.
package path

import (
	"context"
	"fmt"

	"github.com/mutik-labs/mutik/internal/action"
	"github.com/mutik-labs/mutik/internal/docpath"
	"github.com/mutik-labs/mutik/internal/paramutil"
	"github.com/mutik-labs/mutik/internal/util"
	mutikaction "github.com/mutik-labs/mutik/pkg/mutik/v1/action"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/state"
)

func init() {
	action.Register("set_path", NewSetPath)
	action.Register("delete_path", NewDeletePath)
	action.Register("append_path", NewAppendPath)
	action.Register("replace", NewReplace)
}

// SetPath writes "value" at "path" through a draft. Intermediate maps are
// created unless "create" is false. Writing the value already present is a
// skipped mutation.
type SetPath struct{}

// NewSetPath is the factory function for SetPath.
func NewSetPath() mutikaction.Action { return &SetPath{} }

// Apply implements mutikaction.Action.
func (a *SetPath) Apply(_ context.Context, store state.Store[mutikaction.State], params map[string]interface{}) error {
	if err := paramutil.CheckAllowed(params, []string{"path", "value", "create"}); err != nil {
		return err
	}
	if err := paramutil.CheckRequired(params, []string{"path", "value"}); err != nil {
		return err
	}
	p, err := paramutil.GetRequiredString(params, "path")
	if err != nil {
		return err
	}
	if _, err := docpath.Split(p); err != nil {
		return err
	}
	create, ok, err := paramutil.GetOptionalBool(params, "create")
	if err != nil {
		return err
	}
	if !ok {
		create = true
	}
	value := normalize(params["value"])

	return mutateDoc(store, func(doc mutikaction.State) error {
		return docpath.Set(doc, p, value, create)
	})
}

// DeletePath removes the key or list element at "path". Deleting something
// that does not exist is a skipped mutation.
type DeletePath struct{}

// NewDeletePath is the factory function for DeletePath.
func NewDeletePath() mutikaction.Action { return &DeletePath{} }

// Apply implements mutikaction.Action.
func (a *DeletePath) Apply(_ context.Context, store state.Store[mutikaction.State], params map[string]interface{}) error {
	if err := paramutil.CheckAllowed(params, []string{"path"}); err != nil {
		return err
	}
	p, err := paramutil.GetRequiredString(params, "path")
	if err != nil {
		return err
	}
	if store.Get() == nil {
		return nil
	}
	return mutateDoc(store, func(doc mutikaction.State) error {
		_, err := docpath.Delete(doc, p)
		return err
	})
}

// AppendPath appends "value" to the list at "path", creating the list when
// it is missing.
type AppendPath struct{}

// NewAppendPath is the factory function for AppendPath.
func NewAppendPath() mutikaction.Action { return &AppendPath{} }

// Apply implements mutikaction.Action.
func (a *AppendPath) Apply(_ context.Context, store state.Store[mutikaction.State], params map[string]interface{}) error {
	if err := paramutil.CheckAllowed(params, []string{"path", "value"}); err != nil {
		return err
	}
	if err := paramutil.CheckRequired(params, []string{"path", "value"}); err != nil {
		return err
	}
	p, err := paramutil.GetRequiredString(params, "path")
	if err != nil {
		return err
	}
	value := normalize(params["value"])

	return mutateDoc(store, func(doc mutikaction.State) error {
		return docpath.Append(doc, p, value)
	})
}

// Replace sets the whole document to "value" with Set, which always
// notifies even when the new document is equal to the old one.
type Replace struct{}

// NewReplace is the factory function for Replace.
func NewReplace() mutikaction.Action { return &Replace{} }

// Apply implements mutikaction.Action.
func (a *Replace) Apply(_ context.Context, store state.Store[mutikaction.State], params map[string]interface{}) error {
	if err := paramutil.CheckAllowed(params, []string{"value"}); err != nil {
		return err
	}
	if err := paramutil.CheckRequired(params, []string{"value"}); err != nil {
		return err
	}
	doc, _, err := paramutil.GetOptionalMap(params, "value")
	if err != nil {
		return err
	}
	store.Set(normalize(doc).(map[string]interface{}))
	return nil
}

// mutateDoc runs edit against a draft of the document. When edit fails the
// draft is dropped: the store keeps its state and notifies nobody.
func mutateDoc(store state.Store[mutikaction.State], edit func(doc mutikaction.State) error) error {
	base := store.Get()
	var err error
	store.Produce(func(draft *mutikaction.State) (mutikaction.State, bool) {
		if *draft == nil {
			*draft = mutikaction.State{}
		}
		if err = edit(*draft); err != nil {
			return base, true
		}
		return nil, false
	})
	return err
}

// normalize deep-copies a parameter value so the store never aliases step
// params, converting YAML's map[interface{}]interface{} along the way.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return util.DeepCopyAny(v)
	}
}
