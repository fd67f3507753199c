// Package scenario runs scenario files: it builds a document store from the
// scenario's initial state, mounts one view per selector on a render root
// and applies the steps in order, flushing the root after each one.
package scenario

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/mutik-labs/mutik/internal/config"
	"github.com/mutik-labs/mutik/internal/docpath"
	intTracing "github.com/mutik-labs/mutik/internal/tracing"
	"github.com/mutik-labs/mutik/internal/util"
	mutik "github.com/mutik-labs/mutik/pkg/mutik/v1"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/action"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/binding"
	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/events"
	mutiklog "github.com/mutik-labs/mutik/pkg/mutik/v1/log"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/metrics"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/render"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/state"
	"github.com/mutik-labs/mutik/pkg/mutik/v1/tracing"

	oteltrace "go.opentelemetry.io/otel/trace"
)

// Report summarizes a run.
type Report struct {
	Scenario string
	// Steps is the number of steps applied successfully.
	Steps int
	// Commits is the store version at the end of the run.
	Commits uint64
	// Passes and Restarts are the render root's counters.
	Passes   int
	Restarts int
	// Committed lists every view output committed, in order, starting with
	// the initial render.
	Committed []render.Output
	// Final is the last committed output of every view.
	Final    []render.Output
	Duration time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithEventBus passes bus to every store the runner creates.
func WithEventBus(bus events.Bus) Option {
	return func(r *Runner) { r.bus = bus }
}

// WithMetricsRegistryProvider passes provider to every store the runner
// creates.
func WithMetricsRegistryProvider(provider metrics.RegistryProvider) Option {
	return func(r *Runner) { r.metrics = provider }
}

// WithTracerProvider traces steps and store mutations through provider.
func WithTracerProvider(provider tracing.TracerProvider) Option {
	return func(r *Runner) { r.tracer = provider }
}

// WithCommitHook is called with every view output as it is committed.
func WithCommitHook(fn func(render.Output)) Option {
	return func(r *Runner) { r.onCommit = fn }
}

// WithTicks paces the run: each step waits for a value from ticks. The
// channel is the only thing crossing goroutines; all store writes happen on
// the goroutine calling Run.
func WithTicks(ticks <-chan time.Time) Option {
	return func(r *Runner) { r.ticks = ticks }
}

// Runner executes scenarios against actions from a registry.
type Runner struct {
	log      mutiklog.Logger
	registry action.Registry
	bus      events.Bus
	metrics  metrics.RegistryProvider
	tracer   tracing.TracerProvider
	onCommit func(render.Output)
	ticks    <-chan time.Time
}

// NewRunner creates a Runner. log and registry are required.
func NewRunner(log mutiklog.Logger, registry action.Registry, opts ...Option) *Runner {
	if log == nil {
		panic("scenario.NewRunner requires a non-nil logger")
	}
	if registry == nil {
		panic("scenario.NewRunner requires a non-nil action registry")
	}
	r := &Runner{log: log.With("component", "ScenarioRunner"), registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Check verifies that every step names a registered action.
func (r *Runner) Check(sc *config.Scenario) error {
	for i, step := range sc.Steps {
		if _, err := r.registry.Get(step.Action); err != nil {
			return mutikerrors.NewValidationError(fmt.Sprintf("%s: unknown action", step.DisplayName(i)), err)
		}
	}
	return nil
}

// Run executes sc. On a failing step the returned report covers the steps
// that completed and the error is an *errors.ActionExecutionError.
func (r *Runner) Run(ctx context.Context, sc *config.Scenario) (*Report, error) {
	if err := r.Check(sc); err != nil {
		return nil, err
	}
	start := time.Now()
	log := r.log.With("scenario", sc.Name)
	tracer := intTracing.GetTracer(r.tracer)

	store, err := mutik.NewStore[action.State](util.DeepCopy(sc.Initial), r.storeOptions(sc, log)...)
	if err != nil {
		return nil, err
	}

	report := &Report{Scenario: sc.Name}
	root := render.NewRoot(binding.Provide[action.State](ctx, store), log, r.hostOptions(sc, report)...)
	nodes := make([]*render.Node, 0, len(sc.Views))
	for _, v := range sc.Views {
		nodes = append(nodes, root.Mount(v.Name, viewRenderer(v)))
	}
	defer func() {
		for _, n := range nodes {
			n.Unmount()
		}
	}()

	finish := func() {
		report.Commits = store.Version()
		report.Passes = root.Passes()
		report.Restarts = root.Restarts()
		report.Final = root.Output()
		report.Duration = time.Since(start)
	}

	if err := root.Flush(); err != nil {
		finish()
		return report, err
	}
	log.Infof("Scenario started with %d view(s) and %d step(s)", len(sc.Views), len(sc.Steps))

	for i, step := range sc.Steps {
		if r.ticks != nil {
			select {
			case <-ctx.Done():
				finish()
				return report, ctx.Err()
			case <-r.ticks:
			}
		} else if err := ctx.Err(); err != nil {
			finish()
			return report, err
		}

		if err := r.runStep(ctx, tracer, store, root, sc.Name, i, step); err != nil {
			finish()
			log.Errorf("Scenario stopped at %s: %v", step.DisplayName(i), err)
			return report, err
		}
		report.Steps++
	}

	finish()
	log.Infof("Scenario finished: %d step(s), %d commit(s), %d pass(es), %d restart(s)",
		report.Steps, report.Commits, report.Passes, report.Restarts)
	return report, nil
}

func (r *Runner) runStep(
	ctx context.Context,
	tracer oteltrace.Tracer,
	store state.Store[action.State],
	root *render.Root,
	scenarioName string,
	index int,
	step config.Step,
) (err error) {
	ctx, span := tracer.Start(ctx, "mutik.scenario.step", oteltrace.WithAttributes(
		intTracing.AttrScenario.String(scenarioName),
		intTracing.AttrStepIndex.Int(index),
		intTracing.AttrStepAction.String(step.Action),
	))
	defer func() {
		if recovered := recover(); recovered != nil {
			intTracing.RecordPanic(span, recovered)
			cause, ok := recovered.(error)
			if !ok {
				cause = fmt.Errorf("panic: %v", recovered)
			}
			err = mutikerrors.NewActionExecutionError(index, step.Action, cause)
		}
		span.End()
	}()

	factory, err := r.registry.Get(step.Action)
	if err != nil {
		return mutikerrors.NewActionExecutionError(index, step.Action, err)
	}
	params := util.DeepCopy(step.Params)
	if err := factory().Apply(ctx, store, params); err != nil {
		intTracing.RecordError(span, err)
		return mutikerrors.NewActionExecutionError(index, step.Action, err)
	}
	if err := root.Flush(); err != nil {
		intTracing.RecordError(span, err)
		return mutikerrors.NewActionExecutionError(index, step.Action, err)
	}
	span.SetAttributes(intTracing.AttrStoreVersion.Int64(int64(store.Version())))
	r.log.Debugf("Applied %s, store version %d", step.DisplayName(index), store.Version())
	return nil
}

func (r *Runner) storeOptions(sc *config.Scenario, log mutiklog.Logger) []mutik.StoreOption {
	name := sc.Name
	opts := []mutik.StoreOption{mutik.WithLogger(log)}
	if sc.Store != nil {
		if sc.Store.Name != "" {
			name = sc.Store.Name
		}
		opts = append(opts, mutik.WithPanicIsolation(sc.Store.PanicIsolation))
		if sc.Store.MaxReentrancy != nil {
			opts = append(opts, mutik.WithMaxReentrancy(*sc.Store.MaxReentrancy))
		}
	}
	opts = append(opts, mutik.WithName(name))
	if r.bus != nil {
		opts = append(opts, mutik.WithEventBus(r.bus))
	}
	if r.metrics != nil {
		opts = append(opts, mutik.WithMetricsRegistryProvider(r.metrics))
	}
	if r.tracer != nil {
		opts = append(opts, mutik.WithTracerProvider(r.tracer))
	}
	return opts
}

func (r *Runner) hostOptions(sc *config.Scenario, report *Report) []render.Option {
	opts := []render.Option{render.WithCommitHook(func(o render.Output) {
		report.Committed = append(report.Committed, o)
		if r.onCommit != nil {
			r.onCommit(o)
		}
	})}
	if sc.Host != nil {
		if sc.Host.MaxPassRestarts != nil {
			opts = append(opts, render.WithMaxPassRestarts(*sc.Host.MaxPassRestarts))
		}
		if sc.Host.MaxRounds != nil {
			opts = append(opts, render.WithMaxRounds(*sc.Host.MaxRounds))
		}
	}
	return opts
}

// viewRenderer renders v.Select through UseSelector and formats it.
func viewRenderer(v config.View) render.RenderFunc {
	selector := func(doc action.State) interface{} {
		if v.WholeDocument() {
			return doc
		}
		value, _ := docpath.Get(doc, v.Select)
		return value
	}
	var opts []binding.SelectOption[interface{}]
	if v.Equality == config.EqualityDeep {
		opts = append(opts, binding.WithEquality(func(a, b interface{}) bool {
			return reflect.DeepEqual(a, b)
		}))
	}
	format := v.Format
	if format == "" {
		format = "%v"
	}
	return func(n *render.Node) string {
		return fmt.Sprintf(format, binding.UseSelector(n, selector, opts...))
	}
}
