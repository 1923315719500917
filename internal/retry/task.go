package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/multiworker/internal/errors"
)

// AttemptFunc performs one attempt. attempt is 1-based.
type AttemptFunc func(ctx context.Context, attempt int) (string, error)

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Hooks receive the lifecycle of a task. Nil hooks are skipped. Hooks run on
// the task's goroutine.
type Hooks struct {
	OnStart   func()
	OnRetry   func(nextAttempt int, lastErr error, delay time.Duration)
	OnSuccess func(attempts int)
	OnFailure func(attempts int, err error)
}

// Task is one unit of work retried under a Policy.
type Task struct {
	// Name identifies the task in errors ("Worker-2", "Synthesizer").
	Name   string
	Policy Policy
	// Timeout bounds the whole task, across all attempts and backoff waits.
	// Zero means no budget.
	Timeout time.Duration
	Hooks   Hooks

	// Sleep and Now default to real timers and time.Now.
	Sleep SleepFunc
	Now   func() time.Time
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run executes fn until it succeeds, fails fatally, runs out of attempts or
// the context ends. It returns the successful text, the final State, and on
// failure a *errors.TaskError wrapping the decisive error.
func (t Task) Run(ctx context.Context, fn AttemptFunc) (string, *State, error) {
	sleep := t.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	now := t.Now
	if now == nil {
		now = time.Now
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	state := NewState(t.Policy, now())
	if t.Hooks.OnStart != nil {
		t.Hooks.OnStart()
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", state, t.fail(state, t.contextError(err))
		}

		attempt := state.BeginAttempt()
		text, err := fn(ctx, attempt)
		if err == nil {
			state.RecordSuccess()
			if t.Hooks.OnSuccess != nil {
				t.Hooks.OnSuccess(state.Attempts)
			}
			return text, state, nil
		}

		// An attempt cut short by the task's own context is not a model failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", state, t.fail(state, t.contextError(ctxErr))
		}

		if !state.RecordFailure(err) {
			return "", state, t.fail(state, err)
		}

		if t.Hooks.OnRetry != nil {
			t.Hooks.OnRetry(state.Attempts+1, err, state.NextDelay)
		}
		if err := sleep(ctx, state.NextDelay); err != nil {
			return "", state, t.fail(state, t.contextError(err))
		}
	}
}

func (t Task) contextError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) && t.Timeout > 0:
		return errors.NewTimeoutError(t.Name, t.Timeout).WithCause(err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	}
	return err
}

func (t Task) fail(state *State, lastErr error) error {
	state.LastError = lastErr
	taskErr := errors.NewTaskError(t.Name, state.Attempts, lastErr)
	if t.Hooks.OnFailure != nil {
		t.Hooks.OnFailure(state.Attempts, taskErr)
	}
	return taskErr
}
