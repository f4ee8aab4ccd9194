package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/infrapilot/infrapilot/internal/executor"
	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/outcome"
)

// noChangesMarker is printed by `aws cloudformation deploy` when the change
// set is empty. The CLI exits non-zero in that case unless
// --no-fail-on-empty-changeset is given.
const noChangesMarker = "No changes to deploy"

// deployAction creates or updates a CloudFormation stack and waits for it to
// settle.
type deployAction struct {
	engine *Engine
}

func (a *deployAction) Name() string { return "deploy-stack" }

func (a *deployAction) Describe() string {
	return "Deploy a CloudFormation stack from a template and wait for it to finish"
}

func (a *deployAction) Execute(ctx context.Context, in Input) *outcome.Outcome {
	e := a.engine
	name := a.Name()
	req := e.request(in)
	region := req.RegionOr(e.opts.Region)

	stack := req.Identifier
	if stack == "" {
		stack = e.opts.DefaultStack
	}

	fail := func(err error) *outcome.Outcome {
		o := outcome.FromError(name, stack, err)
		o.Region = region
		return o
	}

	// 1. Preflight
	backend, err := e.registry.ForKind(ir.KindStack)
	if err != nil {
		return fail(err)
	}
	if err := executor.Preflight(ctx, backend); err != nil {
		return fail(err)
	}

	// 2. Command: the drafted one if given, else the built-in grammar
	cmd, err := a.command(req, stack, region)
	if err != nil {
		return fail(err)
	}
	if s := cmd.Flag("--stack-name"); s != "" {
		stack = s
	}
	if r := cmd.Flag("--region"); r != "" {
		region = r
	}
	result := e.exec.Execute(ctx, cmd)

	// 3. Classify the exit status
	if strings.Contains(result.Output(), noChangesMarker) {
		o := outcome.Success(name, stack, fmt.Sprintf("No changes to deploy; stack %q is up to date.", stack))
		o.Region = region
		o.Command = cmd.String()
		return o
	}
	if err := executor.Failure(result); err != nil {
		return fail(err)
	}

	if e.opts.DryRun {
		o := outcome.Success(name, stack, fmt.Sprintf("Stack %q deployment initiated.", stack))
		o.Region = region
		o.Command = cmd.String()
		o.Caveat = dryRunCaveat
		return o
	}

	// 4. Poll to a terminal status
	state := e.poll(ctx, backend, ir.KindStack, region, stack)
	o := pollOutcome(name, region, state, fmt.Sprintf("Stack %q deployed (%s).", stack, state.Status))
	o.Command = cmd.String()
	if req.Identifier != "" && req.Identifier != stack {
		o.Requested = req.Identifier
	}
	return o
}

func (a *deployAction) command(req *ir.ActionRequest, stack, region string) (ir.Command, error) {
	draft := req.Param("command")
	if draft == "" {
		file := req.Param("template")
		if file == "" {
			file = req.Param("template_file")
		}
		if file == "" {
			file = a.engine.opts.TemplateFile
		}
		return DeployCommand(file, stack, region, a.engine.opts.Capabilities), nil
	}

	cmd, err := ir.ParseCommand(draft)
	if err != nil {
		return ir.Command{}, &outcome.InputError{Reason: fmt.Sprintf("unusable deploy command: %v", err), Hint: "Provide a single aws cloudformation command."}
	}
	if cmd.Program() != "aws" || len(cmd.Args) < 3 || cmd.Args[1] != "cloudformation" {
		return ir.Command{}, &outcome.InputError{
			Reason: fmt.Sprintf("deploy command must invoke aws cloudformation, got %q", cmd.String()),
			Hint:   "Provide a single aws cloudformation command.",
		}
	}
	return cmd, nil
}
