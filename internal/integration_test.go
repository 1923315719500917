// Package internal contains integration tests that verify the packages work
// together: the turn engine driving the HTTP model client, status events
// flowing through the event bus, and finished turns landing in the session
// store and transcript writer.
package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/multiworker/internal/errors"
	"github.com/Iron-Ham/multiworker/internal/event"
	"github.com/Iron-Ham/multiworker/internal/model"
	"github.com/Iron-Ham/multiworker/internal/model/openai"
	"github.com/Iron-Ham/multiworker/internal/orchestrator"
	"github.com/Iron-Ham/multiworker/internal/orchestrator/prompt"
	"github.com/Iron-Ham/multiworker/internal/session"
	"github.com/Iron-Ham/multiworker/internal/testutil"
	"github.com/Iron-Ham/multiworker/internal/transcript"
)

// fakeEndpoint serves /responses. Worker calls are answered by workerStatus
// and numbered drafts; synthesis calls report how many drafts they merged.
type fakeEndpoint struct {
	workerCalls atomic.Int32
	synthCalls  atomic.Int32
	// workerStatus returns the HTTP status for the n-th (1-based) worker call.
	workerStatus func(n int32) int
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Instructions string `json:"instructions"`
		Input        []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if req.Instructions == prompt.SynthesizerInstructions {
		f.synthCalls.Add(1)
		last := req.Input[len(req.Input)-1].Content
		text := fmt.Sprintf("merged %d drafts", strings.Count(last, "### Worker-"))
		_ = json.NewEncoder(w).Encode(map[string]string{"output_text": text})
		return
	}

	n := f.workerCalls.Add(1)
	if status := f.workerStatus(n); status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"error":{"message":"status %d"}}`, status)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"output_text": fmt.Sprintf("draft %d", n)})
}

type harness struct {
	endpoint *fakeEndpoint
	engine   *orchestrator.Engine
	bus      *event.Bus
	mu       sync.Mutex
	events   []event.Event
}

func newHarness(t *testing.T, workerStatus func(n int32) int) *harness {
	t.Helper()

	h := &harness{endpoint: &fakeEndpoint{workerStatus: workerStatus}, bus: event.NewBus()}
	server := httptest.NewServer(h.endpoint)
	t.Cleanup(server.Close)

	h.bus.SubscribeAll(func(e event.Event) {
		h.mu.Lock()
		h.events = append(h.events, e)
		h.mu.Unlock()
	})

	sleeper := &testutil.SleepRecorder{}
	h.engine = orchestrator.NewEngine(orchestrator.EngineConfig{
		Caller: openai.NewClient(openai.WithBaseURL(server.URL), openai.WithAPIKey("test-key")),
		Sink:   h.bus,
		Sleep:  sleeper.Sleep,
	})
	return h
}

func (h *harness) count(eventType string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

func turnConfig(workers int) orchestrator.TurnConfig {
	cfg := orchestrator.DefaultTurnConfig()
	cfg.WorkerCount = workers
	return cfg
}

// TestTurnOverHTTP runs a full turn against the HTTP client: one worker call
// hits a 503 and is retried, and the synthesizer merges every draft.
func TestTurnOverHTTP(t *testing.T) {
	h := newHarness(t, func(n int32) int {
		if n == 1 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	})

	outcome := h.engine.RunTurn(context.Background(), nil, "What is Go?", turnConfig(3))

	if outcome.Kind != orchestrator.OutcomeSuccess {
		t.Fatalf("Kind = %v, err = %v", outcome.Kind, outcome.Err)
	}
	if outcome.Answer != "merged 3 drafts" {
		t.Errorf("Answer = %q", outcome.Answer)
	}
	if got := h.endpoint.workerCalls.Load(); got != 4 {
		t.Errorf("worker calls = %d, want 4 (3 workers + 1 retry)", got)
	}
	if got := h.count("worker.retrying"); got != 1 {
		t.Errorf("worker.retrying events = %d, want 1", got)
	}
	if got := h.count("synthesizer.succeeded"); got != 1 {
		t.Errorf("synthesizer.succeeded events = %d, want 1", got)
	}
	if got := h.count("turn.phase"); got != 4 {
		t.Errorf("turn.phase events = %d, want 4 (dispatching, collecting, synthesizing, done)", got)
	}
}

// TestTurnOverHTTP_AllWorkersRejected checks that 4xx responses are fatal:
// no retries, no synthesis, and a NoWorkerSucceeded outcome.
func TestTurnOverHTTP_AllWorkersRejected(t *testing.T) {
	h := newHarness(t, func(int32) int { return http.StatusBadRequest })

	outcome := h.engine.RunTurn(context.Background(), nil, "What is Go?", turnConfig(3))

	if outcome.Kind != orchestrator.OutcomeFatal {
		t.Fatalf("Kind = %v", outcome.Kind)
	}
	if !errors.Is(outcome.Err, errors.ErrNoWorkerSucceeded) {
		t.Errorf("Err = %v, want ErrNoWorkerSucceeded", outcome.Err)
	}
	if got := h.endpoint.workerCalls.Load(); got != 3 {
		t.Errorf("worker calls = %d, want 3", got)
	}
	if got := h.endpoint.synthCalls.Load(); got != 0 {
		t.Errorf("synthesis calls = %d, want 0", got)
	}
	if got := h.count("synthesizer.started"); got != 0 {
		t.Errorf("synthesizer.started events = %d, want 0", got)
	}
	for _, f := range outcome.Failures {
		var me *errors.ModelError
		if !errors.As(f.Err, &me) || me.StatusCode != http.StatusBadRequest {
			t.Errorf("%s error = %v, want a 400 ModelError", f.Name, f.Err)
		}
	}
}

// TestConversationPersistence runs two turns, saving the conversation and a
// transcript in between, and checks the second turn sees the saved history.
func TestConversationPersistence(t *testing.T) {
	h := newHarness(t, func(int32) int { return http.StatusOK })
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := session.NewStore(fs, session.DefaultDir)
	writer := transcript.NewWriter(fs, "traces")

	first := h.engine.RunTurn(ctx, nil, "first question", turnConfig(2))
	if !first.OK() {
		t.Fatalf("first turn failed: %v", first.Err)
	}
	history := []model.Message{model.UserMessage("first question"), model.AssistantMessage(first.Answer)}
	if _, err := store.Save(ctx, "demo", history); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "demo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second := h.engine.RunTurn(ctx, loaded, "second question", turnConfig(2))
	if !second.OK() {
		t.Fatalf("second turn failed: %v", second.Err)
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	path, err := writer.Write(transcript.Record{
		At:          at,
		ModelID:     "gpt-5",
		History:     loaded,
		UserMessage: "second question",
		Outcome:     second,
	})
	if err != nil {
		t.Fatalf("transcript Write failed: %v", err)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		"user: first question",
		"assistant: merged 2 drafts",
		"=== LATEST USER MESSAGE ===\nsecond question",
		"status: ok",
		"=== FINAL ANSWER ===\nmerged 2 drafts",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("transcript missing %q:\n%s", want, text)
		}
	}
}
