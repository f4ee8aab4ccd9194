package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/infrapilot/infrapilot/internal/executor"
	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/outcome"
	"github.com/infrapilot/infrapilot/providers/docker"
)

// runContainerAction starts a detached container and waits until it is
// running.
type runContainerAction struct {
	engine *Engine
}

func (a *runContainerAction) Name() string { return "run-container" }

func (a *runContainerAction) Describe() string {
	return "Run a detached docker container and wait for it to start"
}

func (a *runContainerAction) Execute(ctx context.Context, in Input) *outcome.Outcome {
	e := a.engine
	name := a.Name()
	req := e.request(in)

	fail := func(err error) *outcome.Outcome {
		return outcome.FromError(name, req.Identifier, err)
	}

	// 1. Build and validate the run spec
	if err := req.Validate(); err != nil {
		return fail(&outcome.InputError{Reason: "no container name found in the instruction"})
	}
	env, err := docker.ParseEnv(req.Param("env"))
	if err != nil {
		return fail(&outcome.InputError{Reason: err.Error(), Hint: "Use KEY=VALUE pairs separated by commas."})
	}
	spec := docker.RunSpec{
		Name:    req.Identifier,
		Image:   req.Param("image"),
		Ports:   splitList(req.Param("ports")),
		Env:     env,
		Restart: req.Param("restart"),
	}
	if p := req.Param("platform"); p != "" {
		platform, err := docker.ParsePlatform(p)
		if err != nil {
			return fail(&outcome.InputError{Reason: err.Error(), Hint: "Use a platform such as linux/amd64 or linux/arm64/v8."})
		}
		spec.Platform = platform
	}
	if err := spec.Validate(); err != nil {
		return fail(&outcome.InputError{Reason: err.Error(), Hint: "Specify the image and any ports as host:container."})
	}
	exposed, err := spec.ExposedPorts()
	if err != nil {
		return fail(&outcome.InputError{Reason: err.Error()})
	}

	backend, err := e.registry.ForKind(ir.KindContainer)
	if err != nil {
		return fail(err)
	}

	// 2. Daemon preflight and run
	cmd := spec.Command()
	result, err := e.exec.ExecuteChecked(ctx, cmd, backend)
	if err != nil {
		return fail(err)
	}
	if err := executor.Failure(result); err != nil {
		return fail(err)
	}

	about := "image " + spec.Image
	if platform := docker.FormatPlatform(spec.Platform); platform != "" {
		about += ", " + platform
	}
	if len(exposed) > 0 {
		about += ", publishing " + strings.Join(exposed, " ")
	}

	if e.opts.DryRun {
		o := outcome.Success(name, spec.Name, fmt.Sprintf("Container %q start initiated (%s).", spec.Name, about))
		o.Command = cmd.String()
		o.Caveat = dryRunCaveat
		return o
	}

	// 3. Poll container state
	state := e.poll(ctx, backend, ir.KindContainer, "", spec.Name)
	o := pollOutcome(name, "", state, fmt.Sprintf("Container %q is %s (%s).", spec.Name, state.Status, about))
	o.Command = cmd.String()
	return o
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
