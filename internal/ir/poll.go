package ir

import "time"

// PollPhase is a state of the status poller.
type PollPhase string

const (
	PhasePending    PollPhase = "PENDING"
	PhaseInProgress PollPhase = "IN_PROGRESS"
	PhaseComplete   PollPhase = "COMPLETE"
	PhaseFailed     PollPhase = "FAILED"
	PhaseTimeout    PollPhase = "TIMEOUT"
)

// Terminal reports whether the phase ends a poll.
func (p PollPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseTimeout
}

// PollState tracks one outstanding asynchronous operation.
type PollState struct {
	Target      string        `json:"target"`
	Phase       PollPhase     `json:"phase"`
	Status      string        `json:"status,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Caveat      string        `json:"caveat,omitempty"`
	Attempts    int           `json:"attempts"`
	Interval    time.Duration `json:"interval"`
	MaxAttempts int           `json:"maxAttempts"`
	// Err is set when a status query failed permanently.
	Err error `json:"-"`
}
