package prompt

import (
	"errors"
	"testing"

	"github.com/Iron-Ham/multiworker/internal/model"
)

func sampleHistory() []model.Message {
	return []model.Message{
		model.UserMessage("hi"),
		model.AssistantMessage("hello"),
	}
}

func TestWorkerBuilder_Build(t *testing.T) {
	history := sampleHistory()
	opts := model.Options{ModelID: "gpt-5", Reasoning: "medium", Verbosity: "low"}

	req, err := NewWorkerBuilder().Build(&Context{History: history, UserMessage: "2+2?", Options: opts})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if req.Role != model.RoleWorker {
		t.Errorf("Role = %q", req.Role)
	}
	if req.Instructions != WorkerInstructions {
		t.Error("unexpected instructions")
	}
	if req.Options != opts {
		t.Errorf("Options = %+v", req.Options)
	}
	if len(req.Input) != 3 {
		t.Fatalf("Input has %d messages, want 3", len(req.Input))
	}
	if req.Input[2] != model.UserMessage("2+2?") {
		t.Errorf("last message = %+v", req.Input[2])
	}
}

func TestBuild_DoesNotAliasHistory(t *testing.T) {
	history := make([]model.Message, 2, 10)
	copy(history, sampleHistory())

	req, err := NewWorkerBuilder().Build(&Context{History: history, UserMessage: "q"})
	if err != nil {
		t.Fatal(err)
	}
	req.Input[0].Content = "mutated"

	if history[0].Content != "hi" {
		t.Error("builder must not share the caller's backing array")
	}
	if extended := history[:3]; extended[2].Content != "" {
		t.Error("builder wrote into the caller's spare capacity")
	}
}

func TestSynthesisBuilder_Build(t *testing.T) {
	drafts := []Draft{
		{Name: "Worker-1", Text: "  A\n"},
		{Name: "Worker-3", Text: "C"},
	}

	req, err := NewSynthesisBuilder().Build(&Context{
		History:     sampleHistory(),
		UserMessage: "question",
		Drafts:      drafts,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if req.Role != model.RoleSynthesizer || req.Instructions != SynthesizerInstructions {
		t.Errorf("unexpected role/instructions: %s", req)
	}
	if len(req.Input) != 4 {
		t.Fatalf("Input has %d messages, want 4", len(req.Input))
	}
	if req.Input[2] != model.UserMessage("question") {
		t.Errorf("user message = %+v", req.Input[2])
	}
	want := model.AssistantMessage("WORKER DRAFTS:\n### Worker-1\nA\n\n### Worker-3\nC")
	if req.Input[3] != want {
		t.Errorf("drafts message = %q, want %q", req.Input[3].Content, want.Content)
	}
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name    string
		builder Builder
		ctx     *Context
		wantErr error
	}{
		{"nil context", NewWorkerBuilder(), nil, ErrNilContext},
		{"blank user message", NewWorkerBuilder(), &Context{UserMessage: "  "}, ErrEmptyUserMessage},
		{"synthesis without drafts", NewSynthesisBuilder(), &Context{UserMessage: "q"}, ErrNoDrafts},
		{"synthesis nil context", NewSynthesisBuilder(), nil, ErrNilContext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build(tt.ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStitchDrafts(t *testing.T) {
	if got := StitchDrafts(nil); got != "" {
		t.Errorf("StitchDrafts(nil) = %q", got)
	}
	got := StitchDrafts([]Draft{{Name: "Worker-1", Text: "only"}})
	if got != "### Worker-1\nonly" {
		t.Errorf("StitchDrafts = %q", got)
	}
}
