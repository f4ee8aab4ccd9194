package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/outcome"
	"github.com/infrapilot/infrapilot/internal/resolve"
)

// listAction reports the live inventory of one kind.
type listAction struct {
	engine *Engine
	kind   ir.Kind
}

func (a *listAction) Name() string { return "list-" + string(a.kind) }

func (a *listAction) Describe() string {
	return fmt.Sprintf("List live %ss", a.kind)
}

func (a *listAction) Execute(ctx context.Context, in Input) *outcome.Outcome {
	e := a.engine
	name := a.Name()
	req := e.request(in)
	region := e.region(a.kind, req)

	backend, err := e.registry.ForKind(a.kind)
	if err != nil {
		return outcome.FromError(name, "", err)
	}
	inv, err := e.inventory(ctx, backend, a.kind, region)
	if err != nil {
		o := outcome.FromError(name, "", err)
		o.Region = region
		return o
	}

	where := ""
	if region != "" {
		where = " in " + region
	}
	var o *outcome.Outcome
	if inv.Len() == 0 {
		o = outcome.Success(name, "", fmt.Sprintf("No %ss found%s.", a.kind, where))
	} else {
		lines := make([]string, 0, inv.Len())
		for _, r := range inv.Resources {
			if r.Status != "" {
				lines = append(lines, fmt.Sprintf("%s (%s)", r.ID, r.Status))
			} else {
				lines = append(lines, r.ID)
			}
		}
		o = outcome.Success(name, "", fmt.Sprintf("%d %ss%s:\n%s", inv.Len(), a.kind, where, strings.Join(lines, "\n")))
	}
	o.Region = region
	o.Known = inv.IDs()
	return o
}

// waitAction polls an existing resource until its last operation settles.
type waitAction struct {
	engine *Engine
	kind   ir.Kind
}

func (a *waitAction) Name() string { return "wait-" + string(a.kind) }

func (a *waitAction) Describe() string {
	return fmt.Sprintf("Wait for a %s to reach a terminal status", a.kind)
}

func (a *waitAction) Execute(ctx context.Context, in Input) *outcome.Outcome {
	e := a.engine
	name := a.Name()
	req := e.request(in)
	region := e.region(a.kind, req)

	if err := req.Validate(); err != nil {
		return outcome.FromError(name, "", &outcome.InputError{Reason: fmt.Sprintf("no %s name found in the instruction", a.kind)})
	}
	backend, err := e.registry.ForKind(a.kind)
	if err != nil {
		return outcome.FromError(name, req.Identifier, err)
	}

	// Resolve so that waiting on a near miss reports alternatives instead of
	// polling a resource that was never there.
	id := req.Identifier
	inv, err := e.inventory(ctx, backend, a.kind, region)
	if err != nil {
		return outcome.FromError(name, id, err)
	}
	res := resolve.Resolve(id, inv)
	e.metrics.ObserveResolution(resolutionResult(res))
	if !res.Matched {
		o := outcome.FromError(name, id, &outcome.ResolutionError{Candidate: id, Known: inv.IDs()})
		o.Region = region
		return o
	}

	state := e.poll(ctx, backend, a.kind, region, res.ID)
	o := pollOutcome(name, region, state, fmt.Sprintf("%s %q is %s.", title(a.kind), res.ID, state.Status))
	o.Requested = id
	o.AutoCorrected = res.AutoCorrected
	return o
}
