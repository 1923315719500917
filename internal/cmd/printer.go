package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/Iron-Ham/multiworker/internal/event"
	"github.com/Iron-Ham/multiworker/internal/orchestrator"
	"github.com/Iron-Ham/multiworker/internal/util"
)

// defaultLineWidth caps status lines so long provider errors stay on one row.
const defaultLineWidth = 120

// statusPrinter renders turn progress to a terminal. It is driven by an
// event.Bus, which delivers one event at a time, so it needs no locking.
type statusPrinter struct {
	out   io.Writer
	width int
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	return &statusPrinter{out: out, width: defaultLineWidth}
}

// attach subscribes the printer to task statuses and phase changes on bus.
func (p *statusPrinter) attach(bus *event.Bus) {
	bus.SubscribeStatus(p.status)
	bus.Subscribe(event.PhaseChangedEvent{}.EventType(), func(e event.Event) {
		if pc, ok := e.(event.PhaseChangedEvent); ok {
			p.phase(pc)
		}
	})
}

func (p *statusPrinter) status(s event.Status) {
	var detail string
	switch s.Kind {
	case event.KindStarted:
		detail = "started"
	case event.KindRetrying:
		detail = fmt.Sprintf("retrying in %s (attempt %d): %v", s.Delay, s.Attempt, s.Err)
	case event.KindSucceeded:
		detail = fmt.Sprintf("done after %d attempt(s)", s.Attempt)
	case event.KindFailed:
		detail = fmt.Sprintf("failed after %d attempt(s): %v", s.Attempt, s.Err)
	}

	style := statusStyle(s.Kind)
	line := style.Render(statusIcon(s.Kind)) + " " + nameStyle.Render(s.Name) + " " + style.Render(util.OneLine(detail))
	p.println(util.FitWidth(line, p.width))
}

func (p *statusPrinter) phase(e event.PhaseChangedEvent) {
	switch orchestrator.Phase(e.To) {
	case orchestrator.PhaseCollecting:
		p.println(mutedStyle.Render("Workers drafting..."))
	case orchestrator.PhaseSynthesizing:
		p.println(mutedStyle.Render("Synthesizing..."))
	}
}

// outcome prints the answer, or why there is none, and a summary line.
func (p *statusPrinter) outcome(o orchestrator.Outcome) {
	switch o.Kind {
	case orchestrator.OutcomeSuccess:
		p.println("\n" + o.Answer)
	case orchestrator.OutcomePartialFailure:
		names := make([]string, len(o.Failures))
		for i, f := range o.Failures {
			names[i] = f.Name
		}
		p.warn(fmt.Sprintf("%d of %d workers failed (%s); answer merges the rest",
			len(o.Failures), len(o.Results), strings.Join(names, ", ")))
		p.println("\n" + o.Answer)
	default:
		p.println(errorStyle.Render(util.OneLine(fmt.Sprintf("%s turn failed: %v", statusIcon(event.KindFailed), o.Err))))
	}
	p.note(fmt.Sprintf("[%s | %s]", o.Kind, util.FormatElapsed(o.Elapsed)))
}

func (p *statusPrinter) title(msg string) { p.println(titleStyle.Render(msg)) }
func (p *statusPrinter) note(msg string)  { p.println(mutedStyle.Render(msg)) }
func (p *statusPrinter) ok(msg string)    { p.println(successStyle.Render(msg)) }
func (p *statusPrinter) warn(msg string)  { p.println(warningStyle.Render("⚠ " + msg)) }
func (p *statusPrinter) fail(msg string)  { p.println(errorStyle.Render(msg)) }

func (p *statusPrinter) println(s string) {
	_, _ = fmt.Fprintln(p.out, s)
}
