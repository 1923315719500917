// Package retry runs a single unit of work with bounded attempts and capped
// exponential backoff.
//
// A [Task] owns one [State] for the duration of a Run. Transient failures are
// retried after a delay computed by the [Policy]; fatal failures and context
// termination end the task immediately. Workers and the synthesizer use the
// same Task type.
package retry

import (
	"fmt"
	"math"
	"time"

	"github.com/Iron-Ham/multiworker/internal/errors"
)

// Default policy values.
const (
	DefaultMaxAttempts  = 5
	DefaultInitialDelay = 5 * time.Second
	DefaultMaxDelay     = 60 * time.Second
	DefaultMultiplier   = 2.0
)

// Policy bounds a retrying task.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialDelay is the wait after the first failed attempt.
	InitialDelay time.Duration
	// MaxDelay caps every wait.
	MaxDelay time.Duration
	// Multiplier grows the delay after each failure. Values below 1 are treated as 1.
	Multiplier float64
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
	}
}

// Delay returns the wait that follows failed attempt number attempt (1-based):
// min(InitialDelay * Multiplier^(attempt-1), MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.InitialDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Validate reports the first invalid field.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return errors.NewValidationError("max attempts must be at least 1").
			WithField("retry.max_attempts").WithValue(p.MaxAttempts)
	case p.InitialDelay < 0:
		return errors.NewValidationError("initial delay must not be negative").
			WithField("retry.initial_delay_ms").WithValue(p.InitialDelay)
	case p.MaxDelay < 0:
		return errors.NewValidationError("max delay must not be negative").
			WithField("retry.max_delay_ms").WithValue(p.MaxDelay)
	case p.Multiplier < 1:
		return errors.NewValidationError("multiplier must be at least 1").
			WithField("retry.multiplier").WithValue(p.Multiplier)
	}
	return nil
}

func (p Policy) String() string {
	return fmt.Sprintf("attempts=%d delay=%s..%s x%.1f", p.MaxAttempts, p.InitialDelay, p.MaxDelay, p.Multiplier)
}
