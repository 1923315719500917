// Package event carries progress notifications out of a running turn.
//
// The turn engine only ever writes to a [Sink]. Rendering, logging and test
// assertions live on the other side, usually as subscribers of a [Bus].
//
// # Main Types
//
//   - [Status]: one task's lifecycle notification (started, retrying, succeeded, failed)
//   - [PhaseChangedEvent]: a turn moved between orchestration phases
//   - [Sink]: write-only destination for Status values
//   - [Bus]: synchronous pub-sub dispatcher that also implements Sink
//
// # Thread Safety
//
// Up to N workers and the synthesizer report concurrently. [Bus] serializes
// delivery, so every handler call completes before the next one starts and
// output from two tasks never interleaves. Handlers are protected against
// panics; a panicking handler does not prevent other handlers from running.
// A handler must not publish to the bus that is calling it.
//
// # Basic Usage
//
//	bus := event.NewBus()
//	bus.Subscribe("worker.retrying", func(e event.Event) {
//	    s := e.(event.Status)
//	    fmt.Printf("%s retrying in %s\n", s.Name, s.Delay)
//	})
//	bus.SubscribeStatus(func(s event.Status) { logger.Info(s.String()) })
//
//	engine := orchestrator.NewEngine(caller, bus, logger)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - worker.started, worker.retrying, worker.succeeded, worker.failed
//   - synthesizer.started, synthesizer.retrying, synthesizer.succeeded, synthesizer.failed
//   - turn.phase
package event
