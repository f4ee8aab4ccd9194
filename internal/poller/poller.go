// Package poller drives asynchronous operations to a terminal status with a
// bounded, fixed-interval loop.
//
// A poll moves PENDING -> IN_PROGRESS -> {COMPLETE, FAILED, TIMEOUT}. There
// is no backoff: every tick sleeps the same interval, and the attempt ceiling
// is the only bound besides the caller's context.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/infrapilot/infrapilot/internal/ir"
	"github.com/infrapilot/infrapilot/internal/logging"
	"github.com/infrapilot/infrapilot/internal/outcome"
	"github.com/infrapilot/infrapilot/internal/retry"
)

const (
	DefaultInterval    = 10 * time.Second
	DefaultMaxAttempts = 60
)

// StatusFunc queries the current status of the target.
type StatusFunc func(ctx context.Context) (*ir.StatusReport, error)

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Poller polls one target at a time. The zero value is not usable; build one
// with New.
type Poller struct {
	interval    time.Duration
	maxAttempts int
	classify    Classifier
	sleep       SleepFunc
	onTick      func(ir.PollState)
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the fixed interval between status queries.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d >= 0 {
			p.interval = d
		}
	}
}

// WithMaxAttempts sets the attempt ceiling.
func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithSleep replaces the sleep between ticks.
func WithSleep(fn SleepFunc) Option {
	return func(p *Poller) { p.sleep = fn }
}

// WithObserver registers a callback invoked after every tick.
func WithObserver(fn func(ir.PollState)) Option {
	return func(p *Poller) { p.onTick = fn }
}

// New returns a poller using classify to interpret status reports.
func New(classify Classifier, opts ...Option) *Poller {
	p := &Poller{
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
		classify:    classify,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls target until it reaches a terminal phase. It must only be called
// after the triggering action reported immediate success.
func (p *Poller) Run(ctx context.Context, target string, query StatusFunc) *ir.PollState {
	state := &ir.PollState{
		Target:      target,
		Phase:       ir.PhasePending,
		Interval:    p.interval,
		MaxAttempts: p.maxAttempts,
	}
	state.Phase = ir.PhaseInProgress

	for {
		state.Attempts++
		report, err := query(ctx)
		switch {
		case err != nil && retry.IsTransient(err):
			logging.Warn("transient status query error", "target", target, "attempt", state.Attempts, "error", err.Error())
		case err != nil:
			state.Phase = ir.PhaseFailed
			state.Err = err
			p.tick(state)
			return state
		default:
			state.Status = report.Status
			if report.Reason != "" {
				state.Reason = report.Reason
			}
			c := p.classify(report)
			if c.Phase.Terminal() {
				state.Phase = c.Phase
				state.Caveat = c.Caveat
				p.tick(state)
				return state
			}
		}

		logging.Debug("polling", "target", target, "status", state.Status, "attempt", state.Attempts, "max", p.maxAttempts)
		p.tick(state)

		if state.Attempts >= p.maxAttempts {
			state.Phase = ir.PhaseTimeout
			return state
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			state.Phase = ir.PhaseTimeout
			state.Err = err
			return state
		}
	}
}

func (p *Poller) tick(state *ir.PollState) {
	if p.onTick != nil {
		p.onTick(*state)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Err converts a terminal poll state into the error taxonomy: nil for
// COMPLETE, an execution error for FAILED and an advisory timeout for
// TIMEOUT.
func Err(state *ir.PollState) error {
	switch state.Phase {
	case ir.PhaseComplete:
		return nil
	case ir.PhaseFailed:
		var execErr *outcome.ExecutionError
		if errors.As(state.Err, &execErr) {
			return execErr
		}
		diag := state.Reason
		if state.Err != nil {
			diag = state.Err.Error()
		}
		if diag == "" {
			diag = fmt.Sprintf("%s reached status %s", state.Target, state.Status)
		} else if state.Status != "" {
			diag = fmt.Sprintf("%s reached status %s: %s", state.Target, state.Status, diag)
		}
		return &outcome.ExecutionError{Diagnostic: diag, Err: state.Err}
	case ir.PhaseTimeout:
		status := state.Status
		if status == "" {
			status = string(ir.PhaseInProgress)
		}
		return &outcome.TimeoutError{Target: state.Target, Attempts: state.Attempts, Status: status}
	}
	return fmt.Errorf("poll of %s did not finish (%s)", state.Target, state.Phase)
}
