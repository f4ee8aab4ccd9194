package engine

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/infrapilot/infrapilot/internal/executor"
	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/logging"
	"github.com/infrapilot/infrapilot/internal/outcome"
	"github.com/infrapilot/infrapilot/internal/resolve"
)

// deleteAction removes one resource of a kind. The requested name is resolved
// against the live inventory first so near misses are corrected or reported
// with alternatives instead of failing inside the external tool.
type deleteAction struct {
	engine *Engine
	kind   ir.Kind
}

func (a *deleteAction) Name() string { return "delete-" + string(a.kind) }

func (a *deleteAction) Describe() string {
	return fmt.Sprintf("Delete a %s, resolving near-miss names against the live inventory", a.kind)
}

func (a *deleteAction) Execute(ctx context.Context, in Input) *outcome.Outcome {
	e := a.engine
	name := a.Name()
	req := e.request(in)
	region := e.region(a.kind, req)

	fail := func(target string, err error) *outcome.Outcome {
		o := outcome.FromError(name, target, err)
		o.Region = region
		if req.Identifier != o.Target {
			o.Requested = req.Identifier
		}
		return o
	}

	// 1. Identifier, or ask for one
	if err := req.Validate(); err != nil {
		return fail("", &outcome.InputError{Reason: fmt.Sprintf("no %s name found in the instruction", a.kind)})
	}

	backend, err := e.registry.ForKind(a.kind)
	if err != nil {
		return fail(req.Identifier, err)
	}

	// 2. Resolve against live inventory
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

	// 3. Re-check existence; the inventory may be stale
	exists, err := backend.Exists(ctx, a.kind, region, res.ID)
	if err != nil {
		return fail(res.ID, err)
	}
	if !exists {
		return fail(req.Identifier, &outcome.ResolutionError{
			Candidate:    res.ID,
			Alternatives: without(res.Alternatives, res.ID),
			Known:        without(inv.IDs(), res.ID),
		})
	}

	// 4. Delete, preflight first
	cmd, err := DeleteCommand(a.kind, res.ID, region)
	if err != nil {
		return fail(res.ID, err)
	}
	result, err := e.exec.ExecuteChecked(ctx, cmd, backend)
	if err != nil {
		return fail(res.ID, err)
	}
	if err := executor.Failure(result); err != nil {
		return fail(res.ID, err)
	}

	var o *outcome.Outcome
	if a.kind.Async() && a.wait(req) && !e.opts.DryRun {
		// 5. Optionally wait for the resource to disappear
		state := e.poll(ctx, backend, a.kind, region, res.ID)
		o = pollOutcome(name, region, state, fmt.Sprintf("%s %q deleted.", title(a.kind), res.ID))
	} else {
		o = outcome.Success(name, res.ID, fmt.Sprintf("%s %q deletion initiated.", title(a.kind), res.ID))
		o.Region = region
		if a.kind.Async() && a.wait(req) {
			o.Caveat = dryRunCaveat
		}
	}
	o.Command = cmd.String()
	o.Requested = req.Identifier
	o.AutoCorrected = res.AutoCorrected
	if len(res.Alternatives) > 1 {
		o.Alternatives = res.Alternatives
	}
	return o
}

func (a *deleteAction) wait(req *ir.ActionRequest) bool {
	if a.engine.opts.DeleteWait {
		return true
	}
	wait, _ := strconv.ParseBool(req.Param("wait"))
	return wait
}

// dryRunCaveat notes a wait that was skipped because no command ran.
const dryRunCaveat = "dry run: command was not executed, so completion was not awaited"

func without(ids []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(ids), func(s string) bool { return s == id })
}

func title(kind ir.Kind) string {
	s := string(kind)
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
