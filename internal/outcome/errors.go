package outcome

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// snippetLimit bounds how much of an undecodable payload is kept for diagnosis.
const snippetLimit = 200

// InputError means the instruction could not be acted on as given, usually
// because no identifier could be extracted from it.
type InputError struct {
	Reason string
	// Hint replaces the default request to name the resource.
	Hint string
}

func (e *InputError) Error() string {
	if e.Reason == "" {
		return "no resource identifier found in the instruction"
	}
	return e.Reason
}

// ResolutionError means the requested identifier matched nothing live.
type ResolutionError struct {
	Candidate    string
	Alternatives []string
	Known        []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resource %q not found", e.Candidate)
}

// ConnectivityError means the preflight connectivity/identity check failed.
type ConnectivityError struct {
	Backend string
	Err     error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s connectivity check failed: %v", e.Backend, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ExecutionError carries the raw diagnostic of a failed command or query.
type ExecutionError struct {
	Command    string
	ExitCode   int
	Diagnostic string
	Err        error
}

func (e *ExecutionError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("command %q failed (exit %d): %s", e.Command, e.ExitCode, e.Diagnostic)
	}
	return e.Diagnostic
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TimeoutError means a poll exhausted its attempts. It is advisory.
type TimeoutError struct {
	Target   string
	Attempts int
	Status   string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s still %s after %d status checks", e.Target, e.Status, e.Attempts)
}

// DecodeError reports a status payload that could not be decoded, keeping a
// snippet of the raw payload.
func DecodeError(payload []byte, err error) *ExecutionError {
	return &ExecutionError{
		Diagnostic: fmt.Sprintf("undecodable status response (%v): %s", err, Snippet(string(payload))),
		Err:        err,
	}
}

// Snippet trims s to a short single-line excerpt.
func Snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= snippetLimit {
		return s
	}
	cut := snippetLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
