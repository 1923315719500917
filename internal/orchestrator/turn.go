package orchestrator

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/multiworker/internal/errors"
	"github.com/Iron-Ham/multiworker/internal/model"
	"github.com/Iron-Ham/multiworker/internal/orchestrator/prompt"
	"github.com/Iron-Ham/multiworker/internal/retry"
)

// Phase represents the current phase of a turn
type Phase string

const (
	// PhaseDispatching - the worker pool is being started
	PhaseDispatching Phase = "dispatching"
	// PhaseCollecting - waiting for every worker to reach a terminal state
	PhaseCollecting Phase = "collecting"
	// PhaseSynthesizing - the synthesizer is merging the surviving drafts
	PhaseSynthesizing Phase = "synthesizing"
	// PhaseDone - the turn produced an answer
	PhaseDone Phase = "done"
	// PhaseFailed - the turn failed fatally
	PhaseFailed Phase = "failed"
)

// IsTerminal reports whether no further transition can follow p.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Worker count bounds.
const (
	MinWorkers     = 1
	MaxWorkers     = 16
	DefaultWorkers = 4
)

// TurnConfig is the immutable snapshot a turn runs with.
type TurnConfig struct {
	Options     model.Options
	WorkerCount int
	// WorkerTimeout bounds each worker's retrying task, backoff included.
	// Zero means no budget.
	WorkerTimeout time.Duration
	Retry         retry.Policy
}

// DefaultTurnConfig returns the configuration used when nothing is set.
func DefaultTurnConfig() TurnConfig {
	return TurnConfig{
		Options: model.Options{
			ModelID:   "gpt-5",
			Reasoning: model.ReasoningMedium,
			Verbosity: model.VerbosityLow,
		},
		WorkerCount: DefaultWorkers,
		Retry:       retry.DefaultPolicy(),
	}
}

// Validate checks that the snapshot can drive a turn.
func (c TurnConfig) Validate() error {
	if c.Options.ModelID == "" {
		return errors.NewValidationError("model id is required").WithField("model.id")
	}
	if c.WorkerCount < MinWorkers || c.WorkerCount > MaxWorkers {
		return errors.NewValidationError(fmt.Sprintf("worker count must be between %d and %d", MinWorkers, MaxWorkers)).
			WithField("workers.count").WithValue(c.WorkerCount)
	}
	if c.WorkerTimeout < 0 {
		return errors.NewValidationError("worker timeout must not be negative").
			WithField("workers.timeout_seconds").WithValue(c.WorkerTimeout)
	}
	return c.Retry.Validate()
}

// Turn is one user message plus the history it answers. It is not modified
// after dispatch.
type Turn struct {
	ID          string
	History     []model.Message
	UserMessage string
	Config      TurnConfig
	StartedAt   time.Time
}

// WorkerResult is the terminal state of one worker. Exactly one of Draft
// and Err is meaningful: Err is nil for a successful worker.
type WorkerResult struct {
	Identity int
	Name     string
	Draft    string
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// OK reports whether the worker produced a draft.
func (r WorkerResult) OK() bool { return r.Err == nil }

// SynthesisInput is what the synthesizer is given: the turn and the drafts
// of the workers that succeeded, in identity order.
type SynthesisInput struct {
	Turn   Turn
	Drafts []prompt.Draft
}

// OutcomeKind classifies how a turn ended.
type OutcomeKind int

const (
	// OutcomeSuccess - every worker succeeded and synthesis produced an answer
	OutcomeSuccess OutcomeKind = iota
	// OutcomePartialFailure - some workers failed but synthesis produced an answer
	OutcomePartialFailure
	// OutcomeFatal - no answer; Err carries the decisive cause
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomePartialFailure:
		return "partial_failure"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the result of RunTurn.
type Outcome struct {
	Kind   OutcomeKind
	TurnID string
	Answer string
	// Failures lists the failed workers in identity order.
	Failures []WorkerResult
	// Err is set only for OutcomeFatal and is a *errors.TurnError, or a
	// validation error when the turn never started.
	Err error
	// Results holds every worker's result in identity order.
	Results []WorkerResult
	// Synthesis is nil when synthesis was never attempted.
	Synthesis *SynthesisInput
	// Phase is the terminal phase.
	Phase   Phase
	Elapsed time.Duration
}

// OK reports whether the turn produced an answer.
func (o Outcome) OK() bool { return o.Kind != OutcomeFatal }
