// Package workerpool fans a turn out to N concurrent workers and joins them.
package workerpool

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/multiworker/internal/errors"
)

// WorkFunc runs one worker. identity is 1-based.
type WorkFunc[T any] func(ctx context.Context, identity int) T

// PanicFunc converts a worker panic into that worker's result.
type PanicFunc[T any] func(identity int, err error) T

// Run starts n workers, waits for all of them, and returns their results
// ordered by identity: results[i] belongs to worker i+1. A panicking worker
// does not affect the others; its slot is filled by onPanic with an error
// matching errors.ErrWorkerPanicked. n < 1 returns nil.
func Run[T any](ctx context.Context, n int, work WorkFunc[T], onPanic PanicFunc[T]) []T {
	if n < 1 {
		return nil
	}

	results := make([]T, n)
	var wg conc.WaitGroup
	for i := 0; i < n; i++ {
		identity := i + 1
		wg.Go(func() {
			var pc panics.Catcher
			pc.Try(func() {
				results[identity-1] = work(ctx, identity)
			})
			if r := pc.Recovered(); r != nil {
				results[identity-1] = onPanic(identity, PanicError(identity, r))
			}
		})
	}
	wg.Wait()
	return results
}

// PanicError wraps a recovered panic so that it matches errors.ErrWorkerPanicked.
func PanicError(identity int, r *panics.Recovered) error {
	return fmt.Errorf("worker %d: %w: %v", identity, errors.ErrWorkerPanicked, r.Value)
}
