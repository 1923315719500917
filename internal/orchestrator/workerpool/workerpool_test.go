package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/multiworker/internal/errors"
)

type result struct {
	identity int
	text     string
	err      error
}

func failed(identity int, err error) result {
	return result{identity: identity, err: err}
}

func TestRun_OrdersByIdentity(t *testing.T) {
	for _, n := range []int{1, 2, 4, 16} {
		results := Run(context.Background(), n, func(ctx context.Context, identity int) result {
			// Later identities finish first.
			time.Sleep(time.Duration(n-identity) * time.Millisecond)
			return result{identity: identity, text: string(rune('A' + identity - 1))}
		}, failed)

		if len(results) != n {
			t.Fatalf("n=%d: got %d results", n, len(results))
		}
		for i, r := range results {
			if r.identity != i+1 {
				t.Errorf("n=%d: results[%d].identity = %d", n, i, r.identity)
			}
		}
	}
}

func TestRun_RunsConcurrently(t *testing.T) {
	const n = 4
	var running, peak atomic.Int32
	release := make(chan struct{})

	go func() {
		deadline := time.After(2 * time.Second)
		for peak.Load() < n {
			select {
			case <-deadline:
				close(release)
				return
			default:
				time.Sleep(time.Millisecond)
			}
		}
		close(release)
	}()

	Run(context.Background(), n, func(ctx context.Context, identity int) result {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		<-release
		running.Add(-1)
		return result{identity: identity}
	}, failed)

	if peak.Load() != n {
		t.Errorf("peak concurrency = %d, want %d", peak.Load(), n)
	}
}

func TestRun_PanicBecomesFailedResult(t *testing.T) {
	results := Run(context.Background(), 3, func(ctx context.Context, identity int) result {
		if identity == 2 {
			panic("boom")
		}
		return result{identity: identity, text: "ok"}
	}, failed)

	if results[0].err != nil || results[2].err != nil {
		t.Errorf("healthy workers failed: %+v", results)
	}
	if results[1].identity != 2 {
		t.Errorf("panic result identity = %d, want 2", results[1].identity)
	}
	if !errors.Is(results[1].err, errors.ErrWorkerPanicked) {
		t.Errorf("panic err = %v, want ErrWorkerPanicked", results[1].err)
	}
}

func TestRun_ZeroWorkers(t *testing.T) {
	called := false
	results := Run(context.Background(), 0, func(ctx context.Context, identity int) result {
		called = true
		return result{}
	}, failed)
	if results != nil || called {
		t.Errorf("expected no work for n=0, got %v", results)
	}
}

func TestRun_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "turn-1")

	results := Run(ctx, 2, func(ctx context.Context, identity int) result {
		v, _ := ctx.Value(key{}).(string)
		return result{identity: identity, text: v}
	}, failed)

	for _, r := range results {
		if r.text != "turn-1" {
			t.Errorf("worker %d saw %q", r.identity, r.text)
		}
	}
}
