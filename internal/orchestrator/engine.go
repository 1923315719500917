package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/multiworker/internal/errors"
	"github.com/Iron-Ham/multiworker/internal/event"
	"github.com/Iron-Ham/multiworker/internal/logging"
	"github.com/Iron-Ham/multiworker/internal/model"
	"github.com/Iron-Ham/multiworker/internal/orchestrator/prompt"
	"github.com/Iron-Ham/multiworker/internal/orchestrator/workerpool"
	"github.com/Iron-Ham/multiworker/internal/retry"
	"github.com/Iron-Ham/multiworker/internal/tracing"
	"github.com/Iron-Ham/multiworker/internal/util"
)

// Publisher is implemented by sinks that also accept non-status events,
// such as *event.Bus. Phase changes are published to them.
type Publisher interface {
	Publish(event.Event)
}

// Callbacks holds optional hooks into a running turn. They run on the
// goroutine that triggered them.
type Callbacks struct {
	// OnPhaseChange is called on every phase transition.
	OnPhaseChange func(turnID string, from, to Phase)

	// OnWorkerDone is called once per worker when it reaches a terminal state.
	OnWorkerDone func(turnID string, result WorkerResult)

	// OnComplete is called with the outcome just before RunTurn returns.
	OnComplete func(outcome Outcome)
}

// EngineConfig holds configuration for creating an Engine
type EngineConfig struct {
	Caller model.Caller
	// Sink receives status events. Defaults to event.Discard.
	Sink   event.Sink
	Logger *logging.Logger

	// Sleep, Now and NewTurnID default to real timers, time.Now and uuid.
	Sleep     retry.SleepFunc
	Now       func() time.Time
	NewTurnID func() string
}

// Engine runs turns. It holds no per-turn state and is safe for concurrent
// use; every RunTurn call gets its own turnRun.
type Engine struct {
	caller    model.Caller
	sink      event.Sink
	logger    *logging.Logger
	sleep     retry.SleepFunc
	now       func() time.Time
	newTurnID func() string

	workerBuilder    prompt.Builder
	synthesisBuilder prompt.Builder

	mu        sync.RWMutex
	callbacks *Callbacks
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		caller:           cfg.Caller,
		sink:             cfg.Sink,
		logger:           cfg.Logger,
		sleep:            cfg.Sleep,
		now:              cfg.Now,
		newTurnID:        cfg.NewTurnID,
		workerBuilder:    prompt.NewWorkerBuilder(),
		synthesisBuilder: prompt.NewSynthesisBuilder(),
	}
	if e.sink == nil {
		e.sink = event.Discard
	}
	if e.logger == nil {
		e.logger = logging.NopLogger()
	}
	if e.sleep == nil {
		e.sleep = retry.Sleep
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newTurnID == nil {
		e.newTurnID = uuid.NewString
	}
	return e
}

// SetCallbacks sets the engine callbacks
func (e *Engine) SetCallbacks(cb *Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = cb
}

func (e *Engine) getCallbacks() *Callbacks {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.callbacks
}

// RunTurn answers userMessage given history. It starts cfg.WorkerCount
// workers, waits for all of them, and synthesizes the surviving drafts.
// history is never modified. Failures are reported in the Outcome; RunTurn
// does not panic on worker panics or model errors.
func (e *Engine) RunTurn(ctx context.Context, history []model.Message, userMessage string, cfg TurnConfig) Outcome {
	turn := Turn{
		ID:          e.newTurnID(),
		History:     append([]model.Message(nil), history...),
		UserMessage: userMessage,
		Config:      cfg,
		StartedAt:   e.now(),
	}
	r := &turnRun{
		engine:    e,
		turn:      turn,
		callbacks: e.getCallbacks(),
		logger:    e.logger.WithTurn(turn.ID),
	}
	outcome := r.run(ctx)

	if r.callbacks != nil && r.callbacks.OnComplete != nil {
		r.callbacks.OnComplete(outcome)
	}
	return outcome
}

// turnRun drives one turn through its phases. It is created per call and
// never reused.
type turnRun struct {
	engine    *Engine
	turn      Turn
	callbacks *Callbacks
	logger    *logging.Logger
	phase     Phase
}

func (r *turnRun) run(ctx context.Context) Outcome {
	ctx, span := tracing.StartSpan(ctx, "turn", "INTERNAL")
	span.WithAttributes(map[string]string{
		"turn.id": r.turn.ID,
		"model":   r.turn.Config.Options.ModelID,
	}).WithInt("workers", r.turn.Config.WorkerCount)

	outcome := r.execute(ctx)
	outcome.TurnID = r.turn.ID
	outcome.Phase = r.phase
	outcome.Elapsed = r.engine.now().Sub(r.turn.StartedAt)

	span.WithAttributes(map[string]string{"outcome": outcome.Kind.String()})
	tracing.EndSpan(span, outcome.Err)

	r.logger.Info("turn finished",
		"outcome", outcome.Kind.String(),
		"failed_workers", len(outcome.Failures),
		"elapsed", outcome.Elapsed.String(),
	)
	return outcome
}

func (r *turnRun) execute(ctx context.Context) Outcome {
	cfg := r.turn.Config
	if err := cfg.Validate(); err != nil {
		r.setPhase(PhaseFailed)
		r.logger.Error("invalid turn configuration", "error", err)
		return Outcome{Kind: OutcomeFatal, Err: err}
	}

	r.setPhase(PhaseDispatching)
	workerReq, err := r.engine.workerBuilder.Build(&prompt.Context{
		History:     r.turn.History,
		UserMessage: r.turn.UserMessage,
		Options:     cfg.Options,
	})
	if err != nil {
		r.setPhase(PhaseFailed)
		return Outcome{Kind: OutcomeFatal, Err: errors.NewValidationError(err.Error()).WithField("user_message")}
	}

	r.logger.Info("dispatching workers",
		"workers", cfg.WorkerCount,
		"message", util.Preview(r.turn.UserMessage, 100),
	)
	r.setPhase(PhaseCollecting)
	results := workerpool.Run(ctx, cfg.WorkerCount,
		func(ctx context.Context, identity int) WorkerResult {
			return r.runWorker(ctx, identity, workerReq)
		},
		r.workerPanicked,
	)

	outcome := Outcome{Results: results}
	var drafts []prompt.Draft
	var failureErrs []error
	for _, res := range results {
		if res.OK() {
			drafts = append(drafts, prompt.Draft{Name: res.Name, Text: res.Draft})
			continue
		}
		outcome.Failures = append(outcome.Failures, res)
		failureErrs = append(failureErrs, res.Err)
	}

	if len(drafts) == 0 {
		outcome.Kind = OutcomeFatal
		outcome.Err = r.fail(errors.ErrNoWorkerSucceeded, errors.Join(failureErrs...))
		return outcome
	}

	r.setPhase(PhaseSynthesizing)
	input := &SynthesisInput{Turn: r.turn, Drafts: drafts}
	outcome.Synthesis = input

	answer, err := r.runSynthesizer(ctx, input)
	if err != nil {
		outcome.Kind = OutcomeFatal
		outcome.Err = r.fail(errors.ErrSynthesisFailed, err)
		return outcome
	}

	r.setPhase(PhaseDone)
	outcome.Answer = answer
	if len(outcome.Failures) > 0 {
		outcome.Kind = OutcomePartialFailure
	} else {
		outcome.Kind = OutcomeSuccess
	}
	return outcome
}

// fail moves the turn to PhaseFailed and builds the turn error. The phase
// recorded on the error is the one the turn failed in.
func (r *turnRun) fail(reason, cause error) error {
	failedIn := r.phase
	r.setPhase(PhaseFailed)
	err := errors.NewTurnError(reason).WithTurnID(r.turn.ID).WithPhase(string(failedIn))
	if cause != nil {
		err = err.WithCause(cause)
	}
	r.logger.Failure("turn failed", err, "phase", string(failedIn))
	return err
}

func (r *turnRun) setPhase(to Phase) {
	from := r.phase
	r.phase = to

	r.logger.Info("phase changed",
		"from_phase", string(from),
		"to_phase", string(to),
	)

	if pub, ok := r.engine.sink.(Publisher); ok {
		pub.Publish(event.NewPhaseChangedEvent(r.turn.ID, string(from), string(to)))
	}
	if r.callbacks != nil && r.callbacks.OnPhaseChange != nil {
		r.callbacks.OnPhaseChange(r.turn.ID, from, to)
	}
}

func (r *turnRun) runWorker(ctx context.Context, identity int, req model.Request) WorkerResult {
	name := event.WorkerName(identity)
	ctx, span := tracing.StartSpan(ctx, "worker", "INTERNAL")
	span.WithAttributes(map[string]string{"task": name}).WithInt("identity", identity)
	// Overwritten on return; still set if the attempt panics.
	spanErr := error(errors.ErrWorkerPanicked)
	defer func() { tracing.EndSpan(span, spanErr) }()

	task := r.newTask(name, event.StageWorker, identity)
	task.Timeout = r.turn.Config.WorkerTimeout

	req.Task = name
	text, state, err := task.Run(ctx, r.attempt(name, req))
	spanErr = err

	result := WorkerResult{
		Identity: identity,
		Name:     name,
		Draft:    text,
		Err:      err,
		Attempts: state.Attempts,
		Elapsed:  state.Elapsed(r.engine.now()),
	}
	r.workerDone(result)
	return result
}

// workerPanicked turns a recovered worker panic into that worker's failure.
func (r *turnRun) workerPanicked(identity int, err error) WorkerResult {
	name := event.WorkerName(identity)
	r.logger.WithWorker(name).Error("worker panicked", "error", err)
	r.notify(event.StageWorker, identity, name, event.KindFailed, 0, 0, err)

	result := WorkerResult{Identity: identity, Name: name, Err: err}
	r.workerDone(result)
	return result
}

func (r *turnRun) workerDone(result WorkerResult) {
	if r.callbacks != nil && r.callbacks.OnWorkerDone != nil {
		r.callbacks.OnWorkerDone(r.turn.ID, result)
	}
}

func (r *turnRun) runSynthesizer(ctx context.Context, input *SynthesisInput) (string, error) {
	req, err := r.engine.synthesisBuilder.Build(&prompt.Context{
		History:     input.Turn.History,
		UserMessage: input.Turn.UserMessage,
		Drafts:      input.Drafts,
		Options:     input.Turn.Config.Options,
	})
	if err != nil {
		return "", err
	}
	req.Task = event.SynthesizerName

	ctx, span := tracing.StartSpan(ctx, "synthesizer", "INTERNAL")
	span.WithInt("drafts", len(input.Drafts))

	task := r.newTask(event.SynthesizerName, event.StageSynthesizer, 0)
	var text string
	var pc panics.Catcher
	pc.Try(func() {
		text, _, err = task.Run(ctx, r.attempt(event.SynthesizerName, req))
	})
	if rec := pc.Recovered(); rec != nil {
		err = fmt.Errorf("%s: %w: panic: %v", event.SynthesizerName, errors.ErrSynthesisFailed, rec.Value)
		r.logger.WithWorker(event.SynthesizerName).Error("synthesizer panicked", "error", err)
		r.notify(event.StageSynthesizer, 0, event.SynthesizerName, event.KindFailed, 0, 0, err)
		text = ""
	}
	tracing.EndSpan(span, err)
	return text, err
}

// newTask builds a retrying task whose lifecycle is reported to the sink
// and the log under the given stage and identity.
func (r *turnRun) newTask(name string, stage event.Stage, identity int) retry.Task {
	logger := r.logger.WithWorker(name)
	return retry.Task{
		Name:   name,
		Policy: r.turn.Config.Retry,
		Sleep:  r.engine.sleep,
		Now:    r.engine.now,
		Hooks: retry.Hooks{
			OnStart: func() {
				logger.Debug("task started")
				r.notify(stage, identity, name, event.KindStarted, 0, 0, nil)
			},
			OnRetry: func(next int, lastErr error, delay time.Duration) {
				logger.Warn("attempt failed, retrying",
					"next_attempt", next,
					"delay", delay.String(),
					"error", lastErr,
				)
				r.notify(stage, identity, name, event.KindRetrying, next, delay, lastErr)
			},
			OnSuccess: func(attempts int) {
				logger.Info("task succeeded", "attempts", attempts)
				r.notify(stage, identity, name, event.KindSucceeded, attempts, 0, nil)
			},
			OnFailure: func(attempts int, err error) {
				logger.Failure("task failed", err, "attempts", attempts)
				r.notify(stage, identity, name, event.KindFailed, attempts, 0, err)
			},
		},
	}
}

// attempt wraps one model call in a client span.
func (r *turnRun) attempt(name string, req model.Request) retry.AttemptFunc {
	return func(ctx context.Context, attempt int) (string, error) {
		ctx, span := tracing.StartSpan(ctx, "model.complete", "CLIENT")
		span.WithAttributes(map[string]string{
			"task":  name,
			"role":  string(req.Role),
			"model": req.Options.ModelID,
		}).WithInt("attempt", attempt)
		spanErr := error(errors.ErrWorkerPanicked)
		defer func() { tracing.EndSpan(span, spanErr) }()

		text, err := r.engine.caller.Complete(ctx, req)
		if err != nil {
			span.AddEvent("attempt.failed", map[string]string{
				"retryable": strconv.FormatBool(errors.IsRetryable(err)),
			})
		}
		spanErr = err
		return text, err
	}
}

func (r *turnRun) notify(stage event.Stage, identity int, name string, kind event.Kind, attempt int, delay time.Duration, err error) {
	r.engine.sink.Notify(event.Status{
		TurnID:   r.turn.ID,
		Stage:    stage,
		Identity: identity,
		Name:     name,
		Kind:     kind,
		Attempt:  attempt,
		Delay:    delay,
		Err:      err,
		At:       r.engine.now(),
	})
}
