// Package model defines the request shape and the calling contract between the
// turn engine and a completion endpoint. The engine treats the endpoint as an
// opaque capability: it hands over a Request and gets back text or a
// classified error.
package model

import (
	"context"
	"fmt"
)

// Role identifies which part of a turn a request belongs to.
type Role string

const (
	RoleWorker      Role = "worker"
	RoleSynthesizer Role = "synthesizer"
)

// Message roles used in conversation history.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Message is one role-tagged entry of a conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage returns a user-authored Message.
func UserMessage(content string) Message {
	return Message{Role: MessageRoleUser, Content: content}
}

// AssistantMessage returns an assistant-authored Message.
func AssistantMessage(content string) Message {
	return Message{Role: MessageRoleAssistant, Content: content}
}

// Reasoning effort levels accepted by the endpoint.
const (
	ReasoningMinimal = "minimal"
	ReasoningLow     = "low"
	ReasoningMedium  = "medium"
	ReasoningHigh    = "high"
)

// Text verbosity levels accepted by the endpoint.
const (
	VerbosityLow    = "low"
	VerbosityMedium = "medium"
	VerbosityHigh   = "high"
)

// ValidReasoningLevels returns the accepted reasoning effort values.
func ValidReasoningLevels() []string {
	return []string{ReasoningMinimal, ReasoningLow, ReasoningMedium, ReasoningHigh}
}

// ValidVerbosityLevels returns the accepted text verbosity values.
func ValidVerbosityLevels() []string {
	return []string{VerbosityLow, VerbosityMedium, VerbosityHigh}
}

// Options are the per-turn model parameters shared by every call of a turn.
type Options struct {
	ModelID   string
	Reasoning string
	Verbosity string
}

// Request is a single completion call.
type Request struct {
	Role Role
	// Task names the issuing task ("Worker-2", "Synthesizer"). It is
	// metadata for logs and test doubles and is not sent to the endpoint.
	Task         string
	Instructions string
	// Input is the ordered conversation sent to the model. Callers must treat
	// it as read-only; the same backing history is shared by all workers.
	Input   []Message
	Options Options
}

func (r Request) String() string {
	return fmt.Sprintf("%s request (task=%s, model=%s, messages=%d)", r.Role, r.Task, r.Options.ModelID, len(r.Input))
}

// Caller invokes the completion capability. Implementations must be safe for
// concurrent use and must return errors classified as transient or fatal
// (see errors.ModelError). Errors that are not classified are treated as
// transient by the retry layer.
type Caller interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f(ctx, req).
func (f CallerFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
