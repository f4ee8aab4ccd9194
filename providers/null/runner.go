package null

import (
	"context"
	"strings"
	"sync"

	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/logging"
)

// Runner records commands instead of running them. With a fixture attached
// it applies the effect of recognized commands so that follow-up queries see
// the change.
type Runner struct {
	mu      sync.Mutex
	fixture *Fixture
	calls   []ir.Command
	// Results overrides the answer for a rendered command line.
	Results map[string]*ir.ExecutionResult
}

// NewRunner returns a dry-run runner. fixture may be nil.
func NewRunner(fixture *Fixture) *Runner {
	return &Runner{fixture: fixture, Results: make(map[string]*ir.ExecutionResult)}
}

func (r *Runner) Run(_ context.Context, cmd ir.Command) *ir.ExecutionResult {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	canned, ok := r.Results[cmd.String()]
	r.mu.Unlock()

	logging.Info("dry run", "command", cmd.String())
	if ok {
		res := *canned
		res.Command = cmd
		return &res
	}
	if r.fixture != nil {
		r.apply(cmd)
	}
	return &ir.ExecutionResult{Command: cmd, Stdout: "dry run: " + cmd.String() + "\n"}
}

// Calls returns the recorded commands in order.
func (r *Runner) Calls() []ir.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.Command, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *Runner) apply(cmd ir.Command) {
	args := cmd.Args
	if len(args) < 3 {
		return
	}
	verb := strings.Join(args[1:3], " ")
	switch {
	case verb == "cloudformation delete-stack":
		r.fixture.Remove(ir.KindStack, cmd.Flag("--stack-name"))
	case verb == "cloudformation deploy":
		r.fixture.Add(ir.KindStack, &Resource{ID: cmd.Flag("--stack-name"), Status: "CREATE_COMPLETE"})
	case verb == "ec2 terminate-instances":
		r.fixture.Remove(ir.KindInstance, cmd.Flag("--instance-ids"))
	case verb == "dynamodb delete-table":
		r.fixture.Remove(ir.KindTable, cmd.Flag("--table-name"))
	case args[1] == "s3" && args[2] == "rb" && len(args) > 3:
		r.fixture.Remove(ir.KindBucket, strings.TrimPrefix(args[3], "s3://"))
	case args[1] == "run":
		r.fixture.Add(ir.KindContainer, &Resource{ID: cmd.Flag("--name"), Status: "running"})
	case verb == "rm -f":
		r.fixture.Remove(ir.KindContainer, args[len(args)-1])
	case verb == "volume rm" && len(args) > 3:
		r.fixture.Remove(ir.KindVolume, args[3])
	case verb == "image rm" && len(args) > 3:
		r.fixture.Remove(ir.KindImage, args[3])
	}
}
