package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/logging"
	"github.com/infrapilot/infrapilot/internal/outcome"
	"github.com/infrapilot/infrapilot/internal/provider"
	"github.com/infrapilot/infrapilot/internal/resolve"
)

// inspectAction prints the full description of one resource as JSON. Names
// are resolved like deletes, but nothing is changed.
type inspectAction struct {
	engine *Engine
	kind   ir.Kind
}

func (a *inspectAction) Name() string { return "inspect-" + string(a.kind) }

func (a *inspectAction) Describe() string {
	return fmt.Sprintf("Show the full description of a %s as JSON", a.kind)
}

func (a *inspectAction) Execute(ctx context.Context, in Input) *outcome.Outcome {
	e := a.engine
	name := a.Name()
	req := e.request(in)
	region := e.region(a.kind, req)

	fail := func(target string, err error) *outcome.Outcome {
		o := outcome.FromError(name, target, err)
		o.Region = region
		return o
	}

	if err := req.Validate(); err != nil {
		return fail("", &outcome.InputError{Reason: fmt.Sprintf("no %s name found in the instruction", a.kind)})
	}
	backend, err := e.registry.ForKind(a.kind)
	if err != nil {
		return fail(req.Identifier, err)
	}
	inspector, ok := backend.(provider.Inspector)
	if !ok {
		return fail(req.Identifier, fmt.Errorf("%s backend cannot inspect %s resources", backend.Name(), a.kind))
	}

	inv, err := e.inventory(ctx, backend, a.kind, region)
	if err != nil {
		return fail(req.Identifier, err)
	}
	res := resolve.Resolve(req.Identifier, inv)
	e.metrics.ObserveResolution(resolutionResult(res))
	if !res.Matched {
		return fail(req.Identifier, &outcome.ResolutionError{Candidate: req.Identifier, Known: inv.IDs()})
	}
	if res.AutoCorrected {
		logging.Info("identifier auto-corrected", "requested", req.Identifier, "matched", res.ID, "kind", string(a.kind))
	}

	desc, err := inspector.Inspect(ctx, a.kind, region, res.ID)
	if errors.Is(err, provider.ErrNotFound) {
		return fail(req.Identifier, &outcome.ResolutionError{
			Candidate: res.ID,
			Known:     without(inv.IDs(), res.ID),
		})
	}
	if err != nil {
		return fail(res.ID, fmt.Errorf("failed to inspect %s %s: %w", a.kind, res.ID, err))
	}
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return fail(res.ID, fmt.Errorf("failed to marshal %s %s: %w", a.kind, res.ID, err))
	}

	o := outcome.Success(name, res.ID, fmt.Sprintf("%s %q:\n%s", title(a.kind), res.ID, data))
	o.Region = region
	o.Requested = req.Identifier
	o.AutoCorrected = res.AutoCorrected
	if len(res.Alternatives) > 1 {
		o.Alternatives = res.Alternatives
	}
	return o
}
