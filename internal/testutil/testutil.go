// Package testutil provides test doubles shared by the engine, CLI and
// integration tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/multiworker/internal/event"
	"github.com/Iron-Ham/multiworker/internal/model"
)

// StatusRecorder is an event.Sink that keeps every status it receives.
// It is safe for concurrent use.
type StatusRecorder struct {
	mu       sync.Mutex
	statuses []event.Status
}

// Notify implements event.Sink.
func (r *StatusRecorder) Notify(s event.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

// Statuses returns a copy of everything recorded so far, in arrival order.
func (r *StatusRecorder) Statuses() []event.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Status, len(r.statuses))
	copy(out, r.statuses)
	return out
}

// ForTask returns the statuses recorded for one task name, in arrival order.
func (r *StatusRecorder) ForTask(name string) []event.Status {
	var out []event.Status
	for _, s := range r.Statuses() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Count returns how many statuses match stage and kind. An empty kind
// matches every kind.
func (r *StatusRecorder) Count(stage event.Stage, kind event.Kind) int {
	n := 0
	for _, s := range r.Statuses() {
		if s.Stage == stage && (kind == "" || s.Kind == kind) {
			n++
		}
	}
	return n
}

// Reply is one scripted model response.
type Reply struct {
	Text string
	Err  error
}

// MockCaller is a model.Caller whose answers are scripted per task name.
// Each call for a task consumes the next reply in its script; the last
// reply repeats once the script runs out. Tasks without a script fall back
// to CompleteFunc, and then to echoing the task name.
type MockCaller struct {
	Replies      map[string][]Reply
	CompleteFunc func(ctx context.Context, req model.Request) (string, error)

	mu       sync.Mutex
	calls    map[string]int
	requests []model.Request
}

// NewMockCaller creates a MockCaller with the given scripts.
func NewMockCaller(replies map[string][]Reply) *MockCaller {
	return &MockCaller{Replies: replies}
}

// Complete implements model.Caller.
func (m *MockCaller) Complete(ctx context.Context, req model.Request) (string, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	n := m.calls[req.Task]
	m.calls[req.Task] = n + 1
	m.requests = append(m.requests, req)
	script := m.Replies[req.Task]
	m.mu.Unlock()

	if len(script) > 0 {
		if n >= len(script) {
			n = len(script) - 1
		}
		return script[n].Text, script[n].Err
	}
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return req.Task, nil
}

// Calls returns how many times the task was called.
func (m *MockCaller) Calls(task string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[task]
}

// Requests returns every request received for the task, in call order.
func (m *MockCaller) Requests(task string) []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Request
	for _, r := range m.requests {
		if r.Task == task {
			out = append(out, r)
		}
	}
	return out
}

// Times repeats reply n times, for building scripts such as
// append(Times(Reply{Err: transient}, 2), Reply{Text: "ok"}).
func Times(reply Reply, n int) []Reply {
	out := make([]Reply, n)
	for i := range out {
		out[i] = reply
	}
	return out
}

// SleepRecorder is a retry.SleepFunc source that records requested delays
// and returns immediately.
type SleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

// Sleep records d and returns ctx.Err().
func (s *SleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Delays returns the recorded delays in call order.
func (s *SleepRecorder) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}
