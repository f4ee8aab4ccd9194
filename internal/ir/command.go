package ir

import (
	"fmt"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// Command is an external command invocation.
type Command struct {
	Args []string `json:"args"`
}

// NewCommand builds a command from argv.
func NewCommand(args ...string) Command {
	return Command{Args: args}
}

// ParseCommand splits a drafted command line into argv. Markdown code fences
// around the draft are removed first.
func ParseCommand(s string) (Command, error) {
	s = StripFences(s)
	if s == "" {
		return Command{}, fmt.Errorf("empty command")
	}
	args, err := shellquote.Split(s)
	if err != nil {
		return Command{}, fmt.Errorf("failed to split command: %w", err)
	}
	if len(args) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	return Command{Args: args}, nil
}

// Program returns the executable name.
func (c Command) Program() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

// Flag returns the value following the given flag, if present.
func (c Command) Flag(name string) string {
	for i, a := range c.Args {
		if a == name && i+1 < len(c.Args) {
			return c.Args[i+1]
		}
		if v, ok := strings.CutPrefix(a, name+"="); ok {
			return v
		}
	}
	return ""
}

// String renders the command as a single shell-quoted line.
func (c Command) String() string {
	return shellquote.Join(c.Args...)
}

// StripFences removes a surrounding markdown code fence from a model draft.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ExecutionResult is the raw result of running a command.
type ExecutionResult struct {
	Command  Command       `json:"command"`
	ExitCode int           `json:"exitCode"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
	// Err is set when the command could not be run at all, or when a
	// preflight check short-circuited it.
	Err error `json:"-"`
}

// Succeeded reports a zero exit status with no start error.
func (r *ExecutionResult) Succeeded() bool {
	return r != nil && r.Err == nil && r.ExitCode == 0
}

// Diagnostic returns the most useful text describing a failure.
func (r *ExecutionResult) Diagnostic() string {
	if r == nil {
		return ""
	}
	if msg := strings.TrimSpace(r.Stderr); msg != "" {
		return msg
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return strings.TrimSpace(r.Stdout)
}

// Output returns stdout and stderr combined.
func (r *ExecutionResult) Output() string {
	if r == nil {
		return ""
	}
	return r.Stdout + r.Stderr
}
