package retry

import (
	"time"

	"github.com/Iron-Ham/multiworker/internal/errors"
)

// State tracks the attempts of one retrying task. It is owned by a single
// goroutine and is not safe for concurrent use.
type State struct {
	policy Policy

	// Attempts is the number of attempts made so far.
	Attempts int
	// NextDelay is the wait before the next attempt; zero until a retry is scheduled.
	NextDelay time.Duration
	// LastError is the error returned by the most recent failed attempt.
	LastError error
	// Started is when the first attempt began.
	Started time.Time
	// Succeeded is true once an attempt has produced a result.
	Succeeded bool
}

// NewState creates a State for a task that starts now.
func NewState(policy Policy, now time.Time) *State {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &State{policy: policy, Started: now}
}

// BeginAttempt records that another attempt is starting and returns its
// 1-based number.
func (s *State) BeginAttempt() int {
	s.Attempts++
	s.NextDelay = 0
	return s.Attempts
}

// RecordSuccess marks the task as succeeded.
func (s *State) RecordSuccess() {
	s.Succeeded = true
	s.LastError = nil
	s.NextDelay = 0
}

// RecordFailure stores err and reports whether another attempt should follow.
// Fatal errors and exhausted attempts end the task; otherwise NextDelay is set
// to the backoff for the attempt that just failed.
func (s *State) RecordFailure(err error) bool {
	s.LastError = err
	if errors.IsFatal(err) || s.Attempts >= s.policy.MaxAttempts {
		s.NextDelay = 0
		return false
	}
	s.NextDelay = s.policy.Delay(s.Attempts)
	return true
}

// Remaining returns how many attempts are still allowed.
func (s *State) Remaining() int {
	if r := s.policy.MaxAttempts - s.Attempts; r > 0 {
		return r
	}
	return 0
}

// Elapsed returns the time since the task started.
func (s *State) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.Started)
}
