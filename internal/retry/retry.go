// Package retry re-runs inventory queries that fail with transient cloud API
// or daemon errors.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"github.com/infrapilot/infrapilot/internal/logging"
	"github.com/infrapilot/infrapilot/internal/outcome"
)

// Policy bounds the retries of one call. MaxRetries counts the calls after
// the first.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultPolicy returns the policy used for inventory listing.
func DefaultPolicy() *Policy {
	return &Policy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// delay is the full-jitter wait before retry n (0-based).
func (p *Policy) delay(n int) time.Duration {
	d := p.BaseDelay << n
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	return rand.N(d)
}

// WithBackoff calls fn until it succeeds, returns an error shouldRetry
// rejects, or the policy runs out. A nil shouldRetry means IsTransient.
func WithBackoff(ctx context.Context, policy *Policy, fn func() error, shouldRetry func(error) bool) error {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	err := fn()
	for n := 0; err != nil && n < policy.MaxRetries; n++ {
		if !shouldRetry(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}

		wait := policy.delay(n)
		logging.Debug("retrying after transient error", "attempt", n+1, "delay", wait.String(), "error", err.Error())
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-t.C:
		}
		err = fn()
	}
	if err == nil || !shouldRetry(err) {
		return err
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", policy.MaxRetries, err)
}

// transientMarkers are lower-case fragments of messages from throttled APIs,
// flaky networks and a docker daemon that is still starting.
var transientMarkers = []string{
	"throttl",
	"rate exceed",
	"too many requests",
	"request limit",
	"slow down",
	"service unavailable",
	"internal server error",
	"connection reset",
	"connection refused",
	"timeout",
	"tls handshake",
	"temporary failure",
	"cannot connect to the docker daemon",
}

// IsTransient reports whether err is worth retrying. For a failed command
// only its diagnostic output is matched; the command line itself may name a
// stack or flag that contains a marker.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := err.Error()
	var ee *outcome.ExecutionError
	if errors.As(err, &ee) {
		msg = ee.Diagnostic
	}
	msg = strings.ToLower(msg)
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
