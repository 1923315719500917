package event

import (
	"fmt"
	"time"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "worker.started", "turn.phase").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Stage identifies which part of a turn produced a status event.
type Stage string

const (
	// StageWorker - one of the N concurrent draft calls
	StageWorker Stage = "worker"
	// StageSynthesizer - the single merge call
	StageSynthesizer Stage = "synthesizer"
)

// Kind is what happened to a task.
type Kind string

const (
	// KindStarted - the task is about to make its first attempt
	KindStarted Kind = "started"
	// KindRetrying - an attempt failed transiently and another will follow
	KindRetrying Kind = "retrying"
	// KindSucceeded - the task produced text
	KindSucceeded Kind = "succeeded"
	// KindFailed - the task reached a terminal failure
	KindFailed Kind = "failed"
)

// SynthesizerName is the display name used for the synthesizer task.
const SynthesizerName = "Synthesizer"

// WorkerName returns the display name for the worker with the given 1-based identity.
func WorkerName(identity int) string {
	return fmt.Sprintf("Worker-%d", identity)
}

// Status is a progress notification for one task of a turn.
type Status struct {
	TurnID string
	Stage  Stage
	// Identity is the 1-based worker index; zero for the synthesizer.
	Identity int
	Name     string
	Kind     Kind
	// Attempt is the attempt about to run (KindRetrying) or the number of
	// attempts made (KindSucceeded, KindFailed).
	Attempt int
	// Delay is the backoff before the next attempt (KindRetrying only).
	Delay time.Duration
	// Err is the last attempt's error (KindRetrying) or the terminal error (KindFailed).
	Err error
	At  time.Time
}

// EventType returns "<stage>.<kind>", e.g. "worker.retrying".
func (s Status) EventType() string { return string(s.Stage) + "." + string(s.Kind) }

// Timestamp returns when the status was produced.
func (s Status) Timestamp() time.Time { return s.At }

// String renders a compact single-line description.
func (s Status) String() string {
	switch s.Kind {
	case KindRetrying:
		return fmt.Sprintf("%s retrying (attempt %d in %s): %v", s.Name, s.Attempt, s.Delay, s.Err)
	case KindFailed:
		return fmt.Sprintf("%s failed after %d attempt(s): %v", s.Name, s.Attempt, s.Err)
	case KindSucceeded:
		return fmt.Sprintf("%s succeeded after %d attempt(s)", s.Name, s.Attempt)
	default:
		return fmt.Sprintf("%s %s", s.Name, s.Kind)
	}
}

// PhaseChangedEvent is emitted when a turn moves between orchestration phases.
type PhaseChangedEvent struct {
	TurnID string
	From   string
	To     string
	At     time.Time
}

// NewPhaseChangedEvent creates a PhaseChangedEvent stamped with the current time.
func NewPhaseChangedEvent(turnID, from, to string) PhaseChangedEvent {
	return PhaseChangedEvent{TurnID: turnID, From: from, To: to, At: time.Now()}
}

func (e PhaseChangedEvent) EventType() string    { return "turn.phase" }
func (e PhaseChangedEvent) Timestamp() time.Time { return e.At }

// Sink receives status notifications. Implementations must tolerate
// concurrent calls from every task of a turn and make each delivery atomic.
type Sink interface {
	Notify(Status)
}

// SinkFunc adapts a function to the Sink interface. It does not serialize
// calls; wrap it in a Bus when the function is not safe for concurrent use.
type SinkFunc func(Status)

// Notify calls f(s).
func (f SinkFunc) Notify(s Status) { f(s) }

// Discard is a Sink that drops every notification.
var Discard Sink = SinkFunc(func(Status) {})
