// Package executor runs external side-effecting commands and captures their
// raw results. A non-zero exit is never an error here: classification is left
// to the caller.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/logging"
	"github.com/infrapilot/infrapilot/internal/outcome"
)

// Runner runs one command to completion.
type Runner interface {
	Run(ctx context.Context, cmd ir.Command) *ir.ExecutionResult
}

// Checker verifies connectivity and identity before a state-changing action.
type Checker interface {
	Name() string
	Preflight(ctx context.Context) error
}

// ExecRunner runs commands as child processes without a shell.
type ExecRunner struct {
	// Programs maps a program name to the binary that should run it,
	// e.g. "aws" -> "/usr/local/bin/aws".
	Programs map[string]string
	// Env is appended to the current process environment.
	Env []string
	Dir string
}

// Run executes cmd and captures stdout, stderr and the exit status.
func (r *ExecRunner) Run(ctx context.Context, cmd ir.Command) *ir.ExecutionResult {
	result := &ir.ExecutionResult{Command: cmd}
	if len(cmd.Args) == 0 {
		result.ExitCode = -1
		result.Err = fmt.Errorf("empty command")
		return result
	}

	program := cmd.Args[0]
	if bin, ok := r.Programs[program]; ok && bin != "" {
		program = bin
	}

	c := exec.CommandContext(ctx, program, cmd.Args[1:]...)
	c.Dir = r.Dir
	if len(r.Env) > 0 {
		c.Env = append(os.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
		result.Err = fmt.Errorf("failed to start %s: %w", cmd.Program(), err)
	}
	return result
}

// Executor runs commands through a Runner.
type Executor struct {
	runner Runner
}

// New returns an executor. A nil runner uses an ExecRunner.
func New(runner Runner) *Executor {
	if runner == nil {
		runner = &ExecRunner{}
	}
	return &Executor{runner: runner}
}

// Execute runs cmd synchronously.
func (e *Executor) Execute(ctx context.Context, cmd ir.Command) *ir.ExecutionResult {
	logging.Debug("executing command", "command", cmd.String())
	result := e.runner.Run(ctx, cmd)
	if result == nil {
		result = &ir.ExecutionResult{Command: cmd, ExitCode: -1, Err: fmt.Errorf("runner returned no result")}
	}
	logging.Debug("command finished",
		"command", cmd.String(),
		"exit", result.ExitCode,
		"duration", result.Duration.String(),
	)
	return result
}

// ExecuteChecked runs the preflight check first. When it fails the command is
// not attempted and a *outcome.ConnectivityError is returned.
func (e *Executor) ExecuteChecked(ctx context.Context, cmd ir.Command, check Checker) (*ir.ExecutionResult, error) {
	if err := Preflight(ctx, check); err != nil {
		return nil, err
	}
	return e.Execute(ctx, cmd), nil
}

// Preflight runs check, wrapping a failure as a connectivity error. A nil
// check always passes.
func Preflight(ctx context.Context, check Checker) error {
	if check == nil {
		return nil
	}
	if err := check.Preflight(ctx); err != nil {
		logging.Warn("preflight check failed", "backend", check.Name(), "error", err.Error())
		return &outcome.ConnectivityError{Backend: check.Name(), Err: err}
	}
	return nil
}

// Failure converts a finished result into an error, or nil if it succeeded.
func Failure(result *ir.ExecutionResult) error {
	if result.Succeeded() {
		return nil
	}
	return &outcome.ExecutionError{
		Command:    result.Command.String(),
		ExitCode:   result.ExitCode,
		Diagnostic: result.Diagnostic(),
		Err:        result.Err,
	}
}
