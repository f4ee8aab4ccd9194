package poller

import (
	"fmt"
	"strings"

	"github.com/infrapilot/infrapilot/internal/ir"
)

// Classification is the verdict on a single status report.
type Classification struct {
	Phase ir.PollPhase
	// Caveat marks a completion that needs a note, e.g. cleanup still running.
	Caveat string
}

// Classifier maps a status report to a poll phase. Anything that is not
// terminal must return PhaseInProgress.
type Classifier func(report *ir.StatusReport) Classification

func inProgress() Classification { return Classification{Phase: ir.PhaseInProgress} }

// completeCaveats sub-classifies complete markers that need a note. Any other
// status ending in COMPLETE is a nominal completion.
var completeCaveats = map[string]string{
	"IMPORT_COMPLETE": "existing resources were imported into the stack",
}

// markers applies the generic terminal markers: a status ending in FAILED
// failed, one ending in COMPLETE completed.
func markers(status string) (Classification, bool) {
	switch {
	case strings.HasSuffix(status, "FAILED"):
		return Classification{Phase: ir.PhaseFailed}, true
	case strings.HasSuffix(status, "COMPLETE"):
		return Classification{Phase: ir.PhaseComplete, Caveat: completeCaveats[status]}, true
	}
	return Classification{}, false
}

// CloudFormation classifies stack statuses. Rollback statuses are failures
// even when they end in COMPLETE; UPDATE_COMPLETE_CLEANUP_IN_PROGRESS is
// still in progress.
func CloudFormation(report *ir.StatusReport) Classification {
	status := strings.ToUpper(strings.TrimSpace(report.Status))
	if strings.Contains(status, "ROLLBACK") {
		return Classification{Phase: ir.PhaseFailed}
	}
	if c, ok := markers(status); ok {
		return c
	}
	return inProgress()
}

// Container classifies docker container states.
func Container(report *ir.StatusReport) Classification {
	switch strings.ToLower(strings.TrimSpace(report.Status)) {
	case "running":
		return Classification{Phase: ir.PhaseComplete}
	case "paused":
		return Classification{Phase: ir.PhaseComplete, Caveat: "container is paused"}
	case "exited":
		if report.ExitCode == 0 {
			return Classification{Phase: ir.PhaseComplete, Caveat: "container ran to completion and exited with code 0"}
		}
		return Classification{Phase: ir.PhaseFailed}
	case "dead":
		return Classification{Phase: ir.PhaseFailed}
	}
	if c, ok := markers(strings.ToUpper(strings.TrimSpace(report.Status))); ok {
		return c
	}
	return inProgress()
}

// Table classifies DynamoDB table statuses.
func Table(report *ir.StatusReport) Classification {
	status := strings.ToUpper(strings.TrimSpace(report.Status))
	switch status {
	case "ACTIVE":
		return Classification{Phase: ir.PhaseComplete}
	case "ARCHIVED":
		return Classification{Phase: ir.PhaseComplete, Caveat: "table is archived"}
	case "INACCESSIBLE_ENCRYPTION_CREDENTIALS", "INACCESSIBLE":
		return Classification{Phase: ir.PhaseFailed}
	}
	if c, ok := markers(status); ok {
		return c
	}
	return inProgress()
}

// ForKind returns the classifier for a kind, or an error when the kind does
// not complete asynchronously.
func ForKind(kind ir.Kind) (Classifier, error) {
	switch kind {
	case ir.KindStack:
		return CloudFormation, nil
	case ir.KindContainer:
		return Container, nil
	case ir.KindTable:
		return Table, nil
	}
	return nil, fmt.Errorf("%s changes complete synchronously and cannot be polled", kind)
}
