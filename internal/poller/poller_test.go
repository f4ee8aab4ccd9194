package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/outcome"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence returns a StatusFunc replaying statuses and counting queries.
func sequence(calls *int, statuses ...string) StatusFunc {
	return func(context.Context) (*ir.StatusReport, error) {
		i := *calls
		*calls++
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		return &ir.StatusReport{Status: statuses[i]}, nil
	}
}

func noSleep(sleeps *int) SleepFunc {
	return func(context.Context, time.Duration) error {
		if sleeps != nil {
			*sleeps++
		}
		return nil
	}
}

func TestRunCompletesAfterThreeQueries(t *testing.T) {
	var calls, sleeps int
	p := New(CloudFormation, WithSleep(noSleep(&sleeps)))

	state := p.Run(context.Background(), "demo-app", sequence(&calls, "CREATE_IN_PROGRESS", "CREATE_IN_PROGRESS", "CREATE_COMPLETE"))

	assert.Equal(t, ir.PhaseComplete, state.Phase)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, state.Attempts)
	assert.Equal(t, 2, sleeps)
	assert.Equal(t, "CREATE_COMPLETE", state.Status)
	assert.NoError(t, Err(state))
}

func TestRunGenericMarkers(t *testing.T) {
	for _, classify := range map[string]Classifier{"stack": CloudFormation, "table": Table, "container": Container} {
		var calls, sleeps int
		p := New(classify, WithSleep(noSleep(&sleeps)))

		state := p.Run(context.Background(), "orders", sequence(&calls, "IN_PROGRESS", "IN_PROGRESS", "COMPLETE"))
		assert.Equal(t, ir.PhaseComplete, state.Phase)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, sleeps)
		assert.Equal(t, "COMPLETE", state.Status)

		calls = 0
		state = p.Run(context.Background(), "orders", sequence(&calls, "IN_PROGRESS", "FAILED"))
		assert.Equal(t, ir.PhaseFailed, state.Phase)
		assert.Equal(t, 2, calls)
	}
}

func TestRunWaitsThroughUpdateCleanup(t *testing.T) {
	var calls int
	p := New(CloudFormation, WithSleep(noSleep(nil)))

	state := p.Run(context.Background(), "demo-app", sequence(&calls, "UPDATE_IN_PROGRESS", "UPDATE_COMPLETE_CLEANUP_IN_PROGRESS", "UPDATE_COMPLETE"))
	assert.Equal(t, ir.PhaseComplete, state.Phase)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "UPDATE_COMPLETE", state.Status)
	assert.Empty(t, state.Caveat)
}

func TestRunTimesOut(t *testing.T) {
	var calls int
	p := New(CloudFormation, WithMaxAttempts(5), WithSleep(noSleep(nil)))

	state := p.Run(context.Background(), "demo-app", sequence(&calls, "UPDATE_IN_PROGRESS"))

	assert.Equal(t, ir.PhaseTimeout, state.Phase)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, state.Attempts)

	err := Err(state)
	var timeoutErr *outcome.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 5, timeoutErr.Attempts)
	assert.False(t, outcome.FromError("deploy-stack", "demo-app", err).Kind.Failed())
}

func TestRunFailsOnRollback(t *testing.T) {
	var calls int
	p := New(CloudFormation, WithSleep(noSleep(nil)))
	query := func(ctx context.Context) (*ir.StatusReport, error) {
		calls++
		if calls == 1 {
			return &ir.StatusReport{Status: "CREATE_IN_PROGRESS"}, nil
		}
		return &ir.StatusReport{Status: "ROLLBACK_COMPLETE", Reason: "Bucket already exists"}, nil
	}

	state := p.Run(context.Background(), "demo-app", query)
	assert.Equal(t, ir.PhaseFailed, state.Phase)
	assert.Equal(t, "Bucket already exists", state.Reason)

	var execErr *outcome.ExecutionError
	require.ErrorAs(t, Err(state), &execErr)
	assert.Contains(t, execErr.Diagnostic, "ROLLBACK_COMPLETE")
	assert.Contains(t, execErr.Diagnostic, "Bucket already exists")
}

func TestRunTransientErrorsCountAsTicks(t *testing.T) {
	var calls int
	p := New(CloudFormation, WithSleep(noSleep(nil)))
	query := func(ctx context.Context) (*ir.StatusReport, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("Throttling: Rate exceeded")
		}
		return &ir.StatusReport{Status: "CREATE_COMPLETE"}, nil
	}

	state := p.Run(context.Background(), "demo-app", query)
	assert.Equal(t, ir.PhaseComplete, state.Phase)
	assert.Equal(t, 3, state.Attempts)
}

func TestRunPermanentErrorFails(t *testing.T) {
	p := New(CloudFormation, WithSleep(noSleep(nil)))
	decodeErr := outcome.DecodeError([]byte("<html>not json</html>"), errors.New("invalid character '<'"))

	state := p.Run(context.Background(), "demo-app", func(context.Context) (*ir.StatusReport, error) {
		return nil, decodeErr
	})

	assert.Equal(t, ir.PhaseFailed, state.Phase)
	assert.Equal(t, 1, state.Attempts)

	var execErr *outcome.ExecutionError
	require.ErrorAs(t, Err(state), &execErr)
	assert.Contains(t, execErr.Diagnostic, "<html>not json</html>")
}

func TestRunIgnoresMarkersInCommandLine(t *testing.T) {
	p := New(CloudFormation, WithSleep(noSleep(nil)))
	denied := &outcome.ExecutionError{
		Command:    "aws cloudformation describe-stacks --stack-name session-timeout-api --region us-east-1",
		ExitCode:   254,
		Diagnostic: "An error occurred (AccessDenied) when calling the DescribeStacks operation",
	}

	state := p.Run(context.Background(), "session-timeout-api", func(context.Context) (*ir.StatusReport, error) {
		return nil, denied
	})

	assert.Equal(t, ir.PhaseFailed, state.Phase)
	assert.Equal(t, 1, state.Attempts)
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	p := New(CloudFormation, WithInterval(time.Hour))

	query := func(context.Context) (*ir.StatusReport, error) {
		calls++
		cancel()
		return &ir.StatusReport{Status: "DELETE_IN_PROGRESS"}, nil
	}

	state := p.Run(ctx, "demo-app", query)
	assert.Equal(t, ir.PhaseTimeout, state.Phase)
	assert.ErrorIs(t, state.Err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestObserverSeesEveryTick(t *testing.T) {
	var calls int
	var seen []int
	p := New(Container,
		WithSleep(noSleep(nil)),
		WithObserver(func(s ir.PollState) { seen = append(seen, s.Attempts) }),
	)

	state := p.Run(context.Background(), "web", sequence(&calls, "created", "restarting", "running"))
	assert.Equal(t, ir.PhaseComplete, state.Phase)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestCloudFormationClassifier(t *testing.T) {
	tests := []struct {
		status string
		phase  ir.PollPhase
		caveat bool
	}{
		{"CREATE_IN_PROGRESS", ir.PhaseInProgress, false},
		{"CREATE_COMPLETE", ir.PhaseComplete, false},
		{"UPDATE_COMPLETE", ir.PhaseComplete, false},
		{"DELETE_COMPLETE", ir.PhaseComplete, false},
		{"IMPORT_COMPLETE", ir.PhaseComplete, true},
		{"UPDATE_COMPLETE_CLEANUP_IN_PROGRESS", ir.PhaseInProgress, false},
		{"IN_PROGRESS", ir.PhaseInProgress, false},
		{"COMPLETE", ir.PhaseComplete, false},
		{"FAILED", ir.PhaseFailed, false},
		{"IMPORT_ROLLBACK_COMPLETE", ir.PhaseFailed, false},
		{"CREATE_FAILED", ir.PhaseFailed, false},
		{"DELETE_FAILED", ir.PhaseFailed, false},
		{"ROLLBACK_IN_PROGRESS", ir.PhaseFailed, false},
		{"ROLLBACK_COMPLETE", ir.PhaseFailed, false},
		{"UPDATE_ROLLBACK_COMPLETE", ir.PhaseFailed, false},
		{"REVIEW_IN_PROGRESS", ir.PhaseInProgress, false},
		{"", ir.PhaseInProgress, false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			c := CloudFormation(&ir.StatusReport{Status: tt.status})
			assert.Equal(t, tt.phase, c.Phase)
			assert.Equal(t, tt.caveat, c.Caveat != "")
		})
	}
}

func TestContainerClassifier(t *testing.T) {
	tests := []struct {
		name   string
		report ir.StatusReport
		phase  ir.PollPhase
		caveat bool
	}{
		{"running", ir.StatusReport{Status: "running"}, ir.PhaseComplete, false},
		{"created", ir.StatusReport{Status: "created"}, ir.PhaseInProgress, false},
		{"restarting", ir.StatusReport{Status: "restarting"}, ir.PhaseInProgress, false},
		{"exited cleanly", ir.StatusReport{Status: "exited"}, ir.PhaseComplete, true},
		{"exited with error", ir.StatusReport{Status: "exited", ExitCode: 137}, ir.PhaseFailed, false},
		{"dead", ir.StatusReport{Status: "dead"}, ir.PhaseFailed, false},
		{"removed", ir.StatusReport{Status: ir.StatusDeleted}, ir.PhaseComplete, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Container(&tt.report)
			assert.Equal(t, tt.phase, c.Phase)
			assert.Equal(t, tt.caveat, c.Caveat != "")
		})
	}
}

func TestTableClassifier(t *testing.T) {
	assert.Equal(t, ir.PhaseInProgress, Table(&ir.StatusReport{Status: "CREATING"}).Phase)
	assert.Equal(t, ir.PhaseComplete, Table(&ir.StatusReport{Status: "ACTIVE"}).Phase)
	assert.Equal(t, ir.PhaseComplete, Table(&ir.StatusReport{Status: ir.StatusDeleted}).Phase)
	assert.Equal(t, ir.PhaseFailed, Table(&ir.StatusReport{Status: "INACCESSIBLE_ENCRYPTION_CREDENTIALS"}).Phase)
	assert.Equal(t, ir.PhaseComplete, Table(&ir.StatusReport{Status: "RESTORE_COMPLETE"}).Phase)
	assert.Equal(t, ir.PhaseFailed, Table(&ir.StatusReport{Status: "RESTORE_FAILED"}).Phase)
	assert.Equal(t, ir.PhaseInProgress, Table(&ir.StatusReport{Status: "UPDATING"}).Phase)
}

func TestForKind(t *testing.T) {
	for _, k := range []ir.Kind{ir.KindStack, ir.KindContainer, ir.KindTable} {
		c, err := ForKind(k)
		require.NoError(t, err)
		assert.NotNil(t, c)
	}
	_, err := ForKind(ir.KindBucket)
	assert.Error(t, err)
}
