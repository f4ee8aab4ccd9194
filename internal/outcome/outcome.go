// Package outcome classifies the result of an action and renders it as text.
// Every failure inside the engine ends up here as an Outcome; nothing is
// propagated past the engine as an error.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an outcome.
type Kind string

const (
	KindSuccess      Kind = "success"
	KindNotFound     Kind = "not-found"
	KindInput        Kind = "input-error"
	KindConnectivity Kind = "connectivity-error"
	KindExecution    Kind = "execution-error"
	KindTimeout      Kind = "timeout"
)

// Failed reports whether the kind represents a failed action. Timeouts are
// advisory and not failures.
func (k Kind) Failed() bool {
	return k == KindConnectivity || k == KindExecution
}

// Outcome is the human facing result of one action.
type Outcome struct {
	Kind    Kind   `json:"kind"`
	Action  string `json:"action"`
	Target  string `json:"target,omitempty"`
	Region  string `json:"region,omitempty"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Command string `json:"command,omitempty"`
	Status  string `json:"status,omitempty"`
	Caveat  string `json:"caveat,omitempty"`

	Requested     string   `json:"requested,omitempty"`
	AutoCorrected bool     `json:"autoCorrected,omitempty"`
	Alternatives  []string `json:"alternatives,omitempty"`
	Known         []string `json:"known,omitempty"`
}

// Success builds a success outcome.
func Success(action, target, message string) *Outcome {
	return &Outcome{Kind: KindSuccess, Action: action, Target: target, Message: message}
}

// FromError converts any error into an outcome. Typed errors from this
// package keep their classification; anything else is an execution error.
func FromError(action, target string, err error) *Outcome {
	o := &Outcome{Action: action, Target: target}

	var (
		inputErr   *InputError
		resolveErr *ResolutionError
		connErr    *ConnectivityError
		execErr    *ExecutionError
		timeoutErr *TimeoutError
	)
	switch {
	case errors.As(err, &inputErr):
		o.Kind = KindInput
		o.Message = inputErr.Error()
		o.Detail = inputErr.Hint
	case errors.As(err, &resolveErr):
		o.Kind = KindNotFound
		o.Target = resolveErr.Candidate
		o.Message = resolveErr.Error()
		o.Alternatives = resolveErr.Alternatives
		o.Known = resolveErr.Known
	case errors.As(err, &connErr):
		o.Kind = KindConnectivity
		o.Message = connErr.Error()
	case errors.As(err, &execErr):
		o.Kind = KindExecution
		o.Message = "action failed"
		o.Command = execErr.Command
		o.Detail = execErr.Diagnostic
	case errors.As(err, &timeoutErr):
		o.Kind = KindTimeout
		o.Status = timeoutErr.Status
		o.Message = timeoutErr.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		o.Kind = KindTimeout
		o.Message = fmt.Sprintf("stopped waiting: %v", err)
	default:
		o.Kind = KindExecution
		o.Message = "action failed"
		o.Detail = err.Error()
	}
	return o
}

// String renders the outcome for a human.
func (o *Outcome) String() string {
	var b strings.Builder

	switch o.Kind {
	case KindSuccess:
		b.WriteString(o.Message)
	case KindNotFound:
		fmt.Fprintf(&b, "Resource %q was not found", o.Target)
		if o.Region != "" {
			fmt.Fprintf(&b, " in %s", o.Region)
		}
		b.WriteString(".")
		if len(o.Alternatives) > 0 {
			fmt.Fprintf(&b, "\nDid you mean: %s?", strings.Join(o.Alternatives, ", "))
		}
		if len(o.Known) > 0 {
			fmt.Fprintf(&b, "\nAvailable: %s", strings.Join(o.Known, ", "))
		} else {
			b.WriteString("\nNo resources of this kind exist.")
		}
	case KindInput:
		fmt.Fprintf(&b, "Could not run %s: %s.", o.Action, o.Message)
		if o.Detail != "" {
			fmt.Fprintf(&b, " %s", o.Detail)
		} else {
			b.WriteString(" Please specify the resource name.")
		}
	case KindConnectivity:
		fmt.Fprintf(&b, "Could not run %s: %s. Check credentials and connectivity.", o.Action, o.Message)
	case KindExecution:
		fmt.Fprintf(&b, "Error running %s", o.Action)
		if o.Target != "" {
			fmt.Fprintf(&b, " on %q", o.Target)
		}
		if o.Detail != "" {
			fmt.Fprintf(&b, ": %s", o.Detail)
		} else {
			fmt.Fprintf(&b, ": %s", o.Message)
		}
	case KindTimeout:
		fmt.Fprintf(&b, "%s. The operation may still be running; verify its status manually.", o.Message)
	default:
		b.WriteString(o.Message)
	}

	if o.AutoCorrected && o.Requested != "" && o.Requested != o.Target {
		fmt.Fprintf(&b, "\n(requested %q, matched %q)", o.Requested, o.Target)
	}
	if o.Caveat != "" {
		fmt.Fprintf(&b, "\nNote: %s", o.Caveat)
	}
	return b.String()
}
