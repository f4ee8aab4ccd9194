// Package engine turns instructions into finished actions. Each action is a
// variant in an explicit dispatch table; every failure is converted into an
// outcome at this boundary.
package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/infrapilot/infrapilot/internal/executor"
	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/logging"
	"github.com/infrapilot/infrapilot/internal/metrics"
	"github.com/infrapilot/infrapilot/internal/outcome"
	"github.com/infrapilot/infrapilot/internal/parse"
	"github.com/infrapilot/infrapilot/internal/poller"
	"github.com/infrapilot/infrapilot/internal/provider"
	"github.com/infrapilot/infrapilot/internal/resolve"
	"github.com/infrapilot/infrapilot/internal/retry"
	"github.com/infrapilot/infrapilot/internal/template"
)

// Input is one instruction routed to an action. Params override anything of
// the same name parsed from Raw.
type Input struct {
	Raw    string
	Params map[string]string
}

// Action is one entry of the dispatch table.
type Action interface {
	Name() string
	Describe() string
	Execute(ctx context.Context, in Input) *outcome.Outcome
}

// Recorder persists finished outcomes.
type Recorder interface {
	Record(o *outcome.Outcome) error
}

// Options tune action behaviour.
type Options struct {
	Region       string
	DeleteWait   bool
	PollInterval time.Duration
	PollAttempts int

	TemplateFile string
	DefaultStack string
	Capabilities []string

	BucketPrefix string
	SuffixLength int

	// Toolkits names the enabled backends. Empty enables all of them.
	Toolkits []string

	// DryRun marks a runner that only records commands; nothing changes,
	// so actions do not wait for a state change.
	DryRun bool

	// Retry governs inventory listing.
	Retry *retry.Policy
}

// DefaultOptions returns the built-in options.
func DefaultOptions() Options {
	return Options{
		Region:       "us-east-1",
		PollInterval: poller.DefaultInterval,
		PollAttempts: poller.DefaultMaxAttempts,
		TemplateFile: template.DefaultFile,
		DefaultStack: "MyStack",
		Capabilities: []string{"CAPABILITY_NAMED_IAM"},
		BucketPrefix: template.DefaultBucketPrefix,
		SuffixLength: template.DefaultSuffixLength,
		Retry:        retry.DefaultPolicy(),
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records action metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithJournal records every outcome.
func WithJournal(r Recorder) Option {
	return func(e *Engine) { e.journal = r }
}

// WithSleep replaces the poller's sleep, mostly for tests.
func WithSleep(fn poller.SleepFunc) Option {
	return func(e *Engine) { e.sleep = fn }
}

// WithRand replaces the random source for synthesized names.
func WithRand(r template.RandSource) Option {
	return func(e *Engine) { e.rand = r }
}

// Engine owns the dispatch table and the collaborators every action uses.
type Engine struct {
	registry *provider.Registry
	exec     *executor.Executor
	parser   *parse.Parser
	opts     Options

	metrics *metrics.Metrics
	journal Recorder
	sleep   poller.SleepFunc
	rand    template.RandSource

	actions map[string]Action
}

// New builds an engine and its dispatch table.
func New(registry *provider.Registry, exec *executor.Executor, opts Options, extra ...Option) *Engine {
	if opts.Region == "" {
		opts.Region = DefaultOptions().Region
	}
	if opts.DefaultStack == "" {
		opts.DefaultStack = DefaultOptions().DefaultStack
	}
	if opts.TemplateFile == "" {
		opts.TemplateFile = template.DefaultFile
	}
	if opts.Capabilities == nil {
		opts.Capabilities = DefaultOptions().Capabilities
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = poller.DefaultInterval
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = poller.DefaultMaxAttempts
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultPolicy()
	}
	if exec == nil {
		exec = executor.New(nil)
	}

	e := &Engine{
		registry: registry,
		exec:     exec,
		parser:   parse.New(),
		opts:     opts,
		actions:  make(map[string]Action),
	}
	for _, o := range extra {
		o(e)
	}

	for _, kind := range ir.Kinds {
		if !e.enabled(kind.Backend()) {
			continue
		}
		e.register(&deleteAction{engine: e, kind: kind})
		e.register(&listAction{engine: e, kind: kind})
		if kind.Async() {
			e.register(&waitAction{engine: e, kind: kind})
		}
		if kind.Backend() == "docker" {
			e.register(&inspectAction{engine: e, kind: kind})
		}
	}
	if e.enabled("aws") {
		e.register(&deployAction{engine: e})
		e.register(&templateAction{engine: e})
	}
	if e.enabled("docker") {
		e.register(&runContainerAction{engine: e})
	}
	return e
}

func (e *Engine) register(a Action) {
	e.actions[a.Name()] = a
}

// enabled reports whether the toolkit for backend is switched on.
func (e *Engine) enabled(backend string) bool {
	return len(e.opts.Toolkits) == 0 || slices.Contains(e.opts.Toolkits, backend)
}

// Actions returns the dispatch table sorted by name.
func (e *Engine) Actions() []Action {
	names := slices.Sorted(maps.Keys(e.actions))
	out := make([]Action, 0, len(names))
	for _, name := range names {
		out = append(out, e.actions[name])
	}
	return out
}

// Dispatch runs the named action. It never returns nil.
func (e *Engine) Dispatch(ctx context.Context, name string, in Input) *outcome.Outcome {
	start := time.Now()

	a, ok := e.actions[name]
	if !ok {
		names := slices.Sorted(maps.Keys(e.actions))
		o := outcome.FromError(name, "", &outcome.InputError{
			Reason: fmt.Sprintf("unknown action %q", name),
			Hint:   "Known actions: " + strings.Join(names, ", "),
		})
		e.finish(o, start)
		return o
	}

	logging.Debug("dispatching action", "action", name)
	o := a.Execute(ctx, in)
	if o == nil {
		o = outcome.FromError(name, "", fmt.Errorf("action returned no outcome"))
	}
	e.finish(o, start)
	return o
}

func (e *Engine) finish(o *outcome.Outcome, start time.Time) {
	e.metrics.ObserveAction(o.Action, string(o.Kind), time.Since(start))
	if e.journal != nil {
		if err := e.journal.Record(o); err != nil {
			logging.Warn("failed to record journal entry", "action", o.Action, "error", err.Error())
		}
	}
	logging.Info("action finished", "action", o.Action, "outcome", string(o.Kind), "target", o.Target)
}

// request parses in.Raw and overlays in.Params.
func (e *Engine) request(in Input) *ir.ActionRequest {
	req := e.parser.ParseOrEmpty(in.Raw)
	for k, v := range in.Params {
		if v == "" {
			continue
		}
		switch k {
		case "identifier", "name":
			req.Identifier = v
		case "region":
			req.Region = v
		default:
			if req.Params == nil {
				req.Params = make(map[string]string)
			}
			req.Params[k] = v
		}
	}
	return req
}

// region picks the request region for regional kinds.
func (e *Engine) region(kind ir.Kind, req *ir.ActionRequest) string {
	if !kind.Regional() {
		return ""
	}
	return req.RegionOr(e.opts.Region)
}

// inventory lists live resources, retrying transient failures.
func (e *Engine) inventory(ctx context.Context, backend provider.Backend, kind ir.Kind, region string) (*ir.Inventory, error) {
	var inv *ir.Inventory
	err := retry.WithBackoff(ctx, e.opts.Retry, func() error {
		var err error
		inv, err = backend.Inventory(ctx, kind, region)
		return err
	}, retry.IsTransient)
	if err != nil {
		return nil, fmt.Errorf("failed to list %ss: %w", kind, err)
	}
	return inv, nil
}

// poll waits for id to reach a terminal status.
func (e *Engine) poll(ctx context.Context, backend provider.Backend, kind ir.Kind, region, id string) *ir.PollState {
	classify, err := poller.ForKind(kind)
	if err != nil {
		return &ir.PollState{Target: id, Phase: ir.PhaseFailed, Err: err}
	}

	opts := []poller.Option{
		poller.WithInterval(e.opts.PollInterval),
		poller.WithMaxAttempts(e.opts.PollAttempts),
		poller.WithObserver(func(s ir.PollState) {
			logging.Debug("poll tick", "target", s.Target, "status", s.Status, "attempt", s.Attempts)
		}),
	}
	if e.sleep != nil {
		opts = append(opts, poller.WithSleep(e.sleep))
	}

	state := poller.New(classify, opts...).Run(ctx, id, func(ctx context.Context) (*ir.StatusReport, error) {
		return backend.Status(ctx, kind, region, id)
	})
	e.metrics.ObservePoll(string(state.Phase), state.Attempts)
	return state
}

// resolutionResult labels a resolution for metrics.
func resolutionResult(res resolve.Resolution) string {
	switch {
	case !res.Matched:
		return "unresolved"
	case !res.AutoCorrected:
		return "exact"
	case len(res.Alternatives) > 1:
		return "ambiguous"
	}
	return "corrected"
}

// pollOutcome turns a terminal poll into the final outcome of an action.
func pollOutcome(name, region string, state *ir.PollState, success string) *outcome.Outcome {
	if err := poller.Err(state); err != nil {
		o := outcome.FromError(name, state.Target, err)
		o.Region = region
		o.Status = state.Status
		return o
	}
	o := outcome.Success(name, state.Target, success)
	o.Region = region
	o.Status = state.Status
	o.Caveat = state.Caveat
	return o
}
