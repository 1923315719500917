package retry

import (
	"context"
	"testing"
	"time"

	"github.com/Iron-Ham/multiworker/internal/errors"
)

func TestState_RecordFailure(t *testing.T) {
	policy := Policy{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2}

	t.Run("transient retries until attempts run out", func(t *testing.T) {
		s := NewState(policy, time.Now())
		var delays []time.Duration
		for {
			s.BeginAttempt()
			if !s.RecordFailure(errors.Transient("busy", nil)) {
				break
			}
			delays = append(delays, s.NextDelay)
		}
		if s.Attempts != 3 {
			t.Errorf("Attempts = %d, want 3", s.Attempts)
		}
		if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
			t.Errorf("delays = %v, want [1s 2s]", delays)
		}
		if s.Remaining() != 0 {
			t.Errorf("Remaining() = %d, want 0", s.Remaining())
		}
	})

	t.Run("fatal stops immediately", func(t *testing.T) {
		s := NewState(policy, time.Now())
		s.BeginAttempt()
		if s.RecordFailure(errors.Fatal("bad key", nil)) {
			t.Error("fatal error must not be retried")
		}
		if s.NextDelay != 0 {
			t.Errorf("NextDelay = %s, want 0", s.NextDelay)
		}
		if s.Remaining() != 2 {
			t.Errorf("Remaining() = %d, want 2", s.Remaining())
		}
	})

	t.Run("cancellation stops immediately", func(t *testing.T) {
		s := NewState(policy, time.Now())
		s.BeginAttempt()
		if s.RecordFailure(context.Canceled) {
			t.Error("context.Canceled must not be retried")
		}
	})

	t.Run("unclassified errors are transient", func(t *testing.T) {
		s := NewState(policy, time.Now())
		s.BeginAttempt()
		if !s.RecordFailure(errors.New("connection reset")) {
			t.Error("unclassified error should be retried")
		}
	})
}

func TestState_RecordSuccess(t *testing.T) {
	s := NewState(DefaultPolicy(), time.Now())
	s.BeginAttempt()
	s.RecordFailure(errors.Transient("busy", nil))
	s.BeginAttempt()
	s.RecordSuccess()

	if !s.Succeeded || s.LastError != nil || s.Attempts != 2 {
		t.Errorf("unexpected state %+v", s)
	}
}

func TestNewState_ClampsAttempts(t *testing.T) {
	s := NewState(Policy{MaxAttempts: 0}, time.Now())
	s.BeginAttempt()
	if s.RecordFailure(errors.Transient("busy", nil)) {
		t.Error("a zero-attempt policy still allows exactly one attempt")
	}
}

func TestState_Elapsed(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewState(DefaultPolicy(), start)
	if got := s.Elapsed(start.Add(90 * time.Second)); got != 90*time.Second {
		t.Errorf("Elapsed = %s, want 1m30s", got)
	}
}
