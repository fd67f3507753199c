// Package counter provides numeric actions over a single path of a document
// store: increment, decrement and reset.
package counter

import (
	"context"
	"fmt"

	"github.com/mutik-labs/mutik/internal/action"
	"github.com/mutik-labs/mutik/internal/docpath"
	"github.com/mutik-labs/mutik/internal/paramutil"
	mutikaction "github.com/mutik-labs/mutik/pkg/mutik/v1/action"
	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/state"
)

// DefaultPath is the counter location when a step names no path.
const DefaultPath = "count"

func init() {
	action.Register("increment", NewIncrement)
	action.Register("decrement", NewDecrement)
	action.Register("reset", NewReset)
}

var stepParams = []string{"path", "by"}

// Increment adds "by" (default 1) to the number at "path". It writes with
// Update, building the next document with docpath.With so that everything
// off the path is shared with the previous state.
type Increment struct{}

// NewIncrement is the factory function for Increment.
func NewIncrement() mutikaction.Action { return &Increment{} }

// Apply implements mutikaction.Action.
func (a *Increment) Apply(_ context.Context, store state.Store[mutikaction.State], params map[string]interface{}) error {
	path, by, err := parse(params)
	if err != nil {
		return err
	}
	prev := store.Get()
	next, err := add(prev, path, by)
	if err != nil {
		return err
	}
	// Update commits whatever it is handed, so the document is built first.
	updated, err := docpath.With(prev, path, next)
	if err != nil {
		return err
	}
	store.Update(func(mutikaction.State) mutikaction.State { return updated })
	return nil
}

// Decrement subtracts "by" (default 1) from the number at "path" through a
// draft, so a zero step is a skipped mutation rather than a commit.
type Decrement struct{}

// NewDecrement is the factory function for Decrement.
func NewDecrement() mutikaction.Action { return &Decrement{} }

// Apply implements mutikaction.Action.
func (a *Decrement) Apply(_ context.Context, store state.Store[mutikaction.State], params map[string]interface{}) error {
	path, by, err := parse(params)
	if err != nil {
		return err
	}
	base := store.Get()
	next, err := add(base, path, negate(by))
	if err != nil {
		return err
	}
	var werr error
	store.Produce(func(draft *mutikaction.State) (mutikaction.State, bool) {
		if *draft == nil {
			*draft = mutikaction.State{}
		}
		if werr = docpath.Set(*draft, path, next, true); werr != nil {
			// Handing back base discards the draft without a commit.
			return base, true
		}
		return nil, false
	})
	return werr
}

// Reset restores the store's initial document. It takes no parameters.
type Reset struct{}

// NewReset is the factory function for Reset.
func NewReset() mutikaction.Action { return &Reset{} }

// Apply implements mutikaction.Action.
func (a *Reset) Apply(_ context.Context, store state.Store[mutikaction.State], params map[string]interface{}) error {
	if len(params) > 0 {
		return mutikerrors.NewValidationError("reset takes no parameters", nil)
	}
	store.Reset()
	return nil
}

func parse(params map[string]interface{}) (string, interface{}, error) {
	if err := paramutil.CheckAllowed(params, stepParams); err != nil {
		return "", nil, err
	}
	path, ok, err := paramutil.GetOptionalString(params, "path")
	if err != nil {
		return "", nil, err
	}
	if !ok {
		path = DefaultPath
	}
	by, ok, err := paramutil.GetOptionalNumber(params, "by")
	if err != nil {
		return "", nil, err
	}
	if !ok {
		by = 1
	}
	return path, by, nil
}

// add returns the number at path plus by. A missing value counts as zero.
// Integers stay integers unless either side is fractional.
func add(doc mutikaction.State, path string, by interface{}) (interface{}, error) {
	current, exists := docpath.Get(doc, path)
	if !exists || current == nil {
		current = 0
	}
	ci, cIsInt := asInt(current)
	bi, bIsInt := asInt(by)
	if cIsInt && bIsInt {
		return ci + bi, nil
	}
	cf, ok := asFloat(current)
	if !ok {
		return nil, mutikerrors.NewValidationError(fmt.Sprintf("value at '%s' is %T, not a number", path, current), nil)
	}
	bf, _ := asFloat(by)
	return cf + bf, nil
}

func negate(n interface{}) interface{} {
	if i, ok := asInt(n); ok {
		return -i
	}
	f, _ := asFloat(n)
	return -f
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v interface{}) (float64, bool) {
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
