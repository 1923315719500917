// Package prompt builds the model requests of a turn: one worker request
// shared by every worker, and the synthesizer request that carries the
// stitched drafts.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Iron-Ham/multiworker/internal/model"
)

// Builder defines the interface for building requests from context.
type Builder interface {
	// Build generates a request from the given context.
	// Returns an error if the context is invalid for this request type.
	Build(ctx *Context) (model.Request, error)
}

// Context provides all the information needed to build either request type.
type Context struct {
	// History is the prior conversation, oldest first. Builders copy it and
	// never modify the caller's slice.
	History []model.Message

	// UserMessage is the latest user message of the turn.
	UserMessage string

	// Drafts are the successful worker drafts in identity order (synthesis only).
	Drafts []Draft

	Options model.Options
}

// Draft is one worker's successful output.
type Draft struct {
	Name string
	Text string
}

// Validation errors for Context
var (
	ErrNilContext       = errors.New("prompt context is nil")
	ErrEmptyUserMessage = errors.New("user message is required")
	ErrNoDrafts         = errors.New("at least one draft is required for synthesis")
)

const (
	// WorkerInstructions are the system instructions sent with every worker request.
	WorkerInstructions = "You are a Worker. Read the chat so far and the latest user message. " +
		"Use brief internal reasoning, then return a complete, correct, and concise draft answer. " +
		"No preamble; focus on the solution."

	// SynthesizerInstructions are the system instructions sent with the synthesis request.
	SynthesizerInstructions = "You are the Synthesizer. Read the chat so far and the Worker drafts. " +
		"Merge the best ideas, resolve conflicts, and produce ONE polished answer. " +
		"Be decisive, accurate, and concise. Output only the final answer, no preamble."

	// DraftsHeader prefixes the stitched drafts message.
	DraftsHeader = "WORKER DRAFTS:\n"
)

// conversation returns a fresh slice holding history followed by the user
// message, with room for extra trailing messages.
func conversation(ctx *Context, extra int) []model.Message {
	msgs := make([]model.Message, 0, len(ctx.History)+1+extra)
	msgs = append(msgs, ctx.History...)
	return append(msgs, model.UserMessage(ctx.UserMessage))
}

func validate(ctx *Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	if strings.TrimSpace(ctx.UserMessage) == "" {
		return ErrEmptyUserMessage
	}
	return nil
}

// WorkerBuilder builds the request every worker sends.
type WorkerBuilder struct{}

// NewWorkerBuilder creates a new WorkerBuilder.
func NewWorkerBuilder() *WorkerBuilder {
	return &WorkerBuilder{}
}

// Build implements Builder.
func (b *WorkerBuilder) Build(ctx *Context) (model.Request, error) {
	if err := validate(ctx); err != nil {
		return model.Request{}, err
	}
	return model.Request{
		Role:         model.RoleWorker,
		Instructions: WorkerInstructions,
		Input:        conversation(ctx, 0),
		Options:      ctx.Options,
	}, nil
}

// SynthesisBuilder builds the synthesizer request from the surviving drafts.
type SynthesisBuilder struct{}

// NewSynthesisBuilder creates a new SynthesisBuilder.
func NewSynthesisBuilder() *SynthesisBuilder {
	return &SynthesisBuilder{}
}

// Build implements Builder. The drafts are appended as a single assistant
// message after the user message, in the order given.
func (b *SynthesisBuilder) Build(ctx *Context) (model.Request, error) {
	if err := validate(ctx); err != nil {
		return model.Request{}, err
	}
	if len(ctx.Drafts) == 0 {
		return model.Request{}, ErrNoDrafts
	}
	input := conversation(ctx, 1)
	input = append(input, model.AssistantMessage(DraftsHeader+StitchDrafts(ctx.Drafts)))
	return model.Request{
		Role:         model.RoleSynthesizer,
		Instructions: SynthesizerInstructions,
		Input:        input,
		Options:      ctx.Options,
	}, nil
}

// StitchDrafts renders drafts as "### <name>\n<text>" blocks separated by a
// blank line. Draft text is trimmed.
func StitchDrafts(drafts []Draft) string {
	blocks := make([]string, 0, len(drafts))
	for _, d := range drafts {
		blocks = append(blocks, fmt.Sprintf("### %s\n%s", d.Name, strings.TrimSpace(d.Text)))
	}
	return strings.Join(blocks, "\n\n")
}
