// Package render is a minimal synchronous host for binding components: a
// flat, ordered set of nodes whose render functions produce string output.
//
// Flush re-renders invalidated nodes in mount order as one pass. Every hook
// read inside a pass reports the generation of the store it read; if one
// store is seen at two generations the pass is torn, its output discarded and
// the pass restarted, so committed output always reflects one generation per
// store.
package render

import (
	"context"
	"fmt"

	"github.com/mutik-labs/mutik/pkg/mutik/v1/binding"
	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"
	mutiklog "github.com/mutik-labs/mutik/pkg/mutik/v1/log"
)

const (
	// DefaultMaxPassRestarts bounds how often a torn pass is retried.
	DefaultMaxPassRestarts = 8
	// DefaultMaxRounds bounds how many consecutive passes one Flush runs
	// while renders keep invalidating nodes.
	DefaultMaxRounds = 100
)

// RenderFunc renders a node. Hooks must be called in the same order on
// every render.
type RenderFunc func(n *Node) string

// Output is the committed output of one node.
type Output struct {
	Node  string
	Value string
}

// Option configures a Root.
type Option func(*Root)

// WithMaxPassRestarts sets how many times a torn pass is restarted before
// Flush gives up with an *errors.TearingError.
func WithMaxPassRestarts(n int) Option {
	return func(r *Root) {
		if n >= 0 {
			r.maxRestarts = n
		}
	}
}

// WithMaxRounds sets how many consecutive passes one Flush may run.
func WithMaxRounds(n int) Option {
	return func(r *Root) {
		if n > 0 {
			r.maxRounds = n
		}
	}
}

// WithCommitHook registers fn to be called for every node output committed
// by a pass, in mount order.
func WithCommitHook(fn func(Output)) Option {
	return func(r *Root) { r.onCommit = fn }
}

// Root owns a set of mounted nodes.
type Root struct {
	ctx         context.Context
	log         mutiklog.Logger
	nodes       []*Node
	maxRestarts int
	maxRounds   int
	onCommit    func(Output)
	current     *pass

	passes   int
	restarts int
}

// NewRoot creates an empty root. ctx is the default context of mounted
// nodes and normally carries the providers.
func NewRoot(ctx context.Context, log mutiklog.Logger, opts ...Option) *Root {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		panic("render.Root requires a non-nil logger")
	}
	r := &Root{
		ctx:         ctx,
		log:         log.With("component", "RenderRoot"),
		maxRestarts: DefaultMaxPassRestarts,
		maxRounds:   DefaultMaxRounds,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount adds a node using the root context. The node first renders on the
// next Flush.
func (r *Root) Mount(name string, fn RenderFunc) *Node {
	return r.MountContext(r.ctx, name, fn)
}

// MountContext adds a node with its own context.
func (r *Root) MountContext(ctx context.Context, name string, fn RenderFunc) *Node {
	n := &Node{root: r, name: name, ctx: ctx, render: fn, mounted: true, dirty: true}
	r.nodes = append(r.nodes, n)
	r.log.Debugf("Mounted node '%s'", name)
	return n
}

// Dirty reports whether any mounted node awaits re-render.
func (r *Root) Dirty() bool {
	for _, n := range r.nodes {
		if n.dirty {
			return true
		}
	}
	return false
}

// Passes returns the number of committed passes.
func (r *Root) Passes() int { return r.passes }

// Restarts returns the number of torn passes that were restarted.
func (r *Root) Restarts() int { return r.restarts }

// Output returns the committed output of every mounted node in mount order.
func (r *Root) Output() []Output {
	out := make([]Output, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, Output{Node: n.name, Value: n.output})
	}
	return out
}

// Flush renders invalidated nodes until none are left.
func (r *Root) Flush() error {
	for round := 0; round < r.maxRounds; round++ {
		var dirty []*Node
		for _, n := range r.nodes {
			if n.dirty {
				dirty = append(dirty, n)
			}
		}
		if len(dirty) == 0 {
			return nil
		}
		if err := r.runPass(dirty); err != nil {
			return err
		}
	}
	return fmt.Errorf("render did not settle after %d rounds", r.maxRounds)
}

func (r *Root) runPass(nodes []*Node) error {
	for restarts := 0; ; restarts++ {
		p := &pass{versions: make(map[any]uint64)}
		staged := make([]string, len(nodes))

		r.renderAll(p, nodes, staged)

		if !p.torn {
			r.passes++
			for i, n := range nodes {
				if !n.mounted {
					continue
				}
				n.output = staged[i]
				n.renders++
				if r.onCommit != nil {
					r.onCommit(Output{Node: n.name, Value: n.output})
				}
			}
			return nil
		}

		for _, n := range nodes {
			n.dirty = n.mounted
		}
		if restarts == r.maxRestarts {
			r.log.Warnf("Render pass still torn after %d restarts, giving up", restarts)
			return mutikerrors.NewTearingError(restarts)
		}
		r.restarts++
		r.log.Debugf("Render pass torn, restarting (attempt %d)", restarts+1)
	}
}

// renderAll renders nodes into staged under pass p, stopping at the first
// torn read. The pass is cleared even if a render panics.
func (r *Root) renderAll(p *pass, nodes []*Node, staged []string) {
	r.current = p
	defer func() { r.current = nil }()
	for i, n := range nodes {
		if !n.mounted {
			continue
		}
		n.dirty = false
		staged[i] = n.renderOnce()
		if p.torn {
			return
		}
	}
}

func (r *Root) unmount(target *Node) {
	kept := r.nodes[:0:0]
	for _, n := range r.nodes {
		if n != target {
			kept = append(kept, n)
		}
	}
	r.nodes = kept
}

// pass implements binding.Observer for one render attempt.
type pass struct {
	versions map[any]uint64
	torn     bool
}

func (p *pass) Observe(source any, version uint64) {
	if first, ok := p.versions[source]; ok {
		if first != version {
			p.torn = true
		}
		return
	}
	p.versions[source] = version
}

// Node is one mounted component. It implements binding.Component.
type Node struct {
	root     *Root
	name     string
	ctx      context.Context
	render   RenderFunc
	slots    []*any
	cursor   int
	cleanups []func()
	mounted  bool
	dirty    bool
	output   string
	renders  int
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Output returns the last committed output.
func (n *Node) Output() string { return n.output }

// Renders returns how many of the node's renders were committed.
func (n *Node) Renders() int { return n.renders }

// Mounted reports whether the node is still mounted.
func (n *Node) Mounted() bool { return n.mounted }

// Context implements binding.Component.
func (n *Node) Context() context.Context { return n.ctx }

// Slot implements binding.Component.
func (n *Node) Slot() *any {
	if n.cursor == len(n.slots) {
		n.slots = append(n.slots, new(any))
	}
	slot := n.slots[n.cursor]
	n.cursor++
	return slot
}

// Invalidate implements binding.Component.
func (n *Node) Invalidate() {
	if n.mounted {
		n.dirty = true
	}
}

// OnUnmount implements binding.Component.
func (n *Node) OnUnmount(fn func()) {
	n.cleanups = append(n.cleanups, fn)
}

// Pass implements binding.Component.
func (n *Node) Pass() binding.Observer {
	if n.root.current == nil {
		return nil
	}
	return n.root.current
}

// Unmount runs the node's cleanups in reverse registration order and removes
// it from the root. Unmounting twice is a no-op.
func (n *Node) Unmount() {
	if !n.mounted {
		return
	}
	n.mounted = false
	n.dirty = false
	for i := len(n.cleanups) - 1; i >= 0; i-- {
		n.cleanups[i]()
	}
	n.cleanups = nil
	n.root.unmount(n)
	n.root.log.Debugf("Unmounted node '%s'", n.name)
}

func (n *Node) renderOnce() string {
	n.cursor = 0
	return n.render(n)
}

var _ binding.Component = (*Node)(nil)
