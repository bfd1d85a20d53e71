package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fsmrt/internal/fsm"
)

// Outcome is the result of processing one event.
type Outcome int

const (
	// OutcomeDiscarded: no transition matched; state unchanged.
	OutcomeDiscarded Outcome = iota
	// OutcomeTransitioned: a transition ran and its target state was committed.
	OutcomeTransitioned
	// OutcomeDisplayed: a Display control event produced a DisplayRecord.
	OutcomeDisplayed
	// OutcomeExit: an Exit control event; the processing loop ends.
	OutcomeExit
	// OutcomeFailed: the engine is poisoned; see RuntimeError.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeTransitioned:
		return "transitioned"
	case OutcomeDisplayed:
		return "displayed"
	case OutcomeExit:
		return "exit"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Snapshot is an engine's introspection view.
type Snapshot struct {
	Engine    string
	State     fsm.State
	LastEvent fsm.Event // "" until the first non-control event
}

// TransitionRecord is emitted once per committed transition.
type TransitionRecord struct {
	Seq         int64
	Elapsed     time.Duration // since the engine's epoch
	Engine      string
	From        fsm.State
	Event       fsm.Event
	To          fsm.State
	Description string
}

// Stamp formats Elapsed as seconds.milliseconds.
func (r TransitionRecord) Stamp() string {
	return FormatStamp(r.Elapsed)
}

// FormatStamp renders d as seconds.milliseconds.
func FormatStamp(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}

// DisplayRecord is emitted once per Display control event.
type DisplayRecord struct {
	Seq int64
	Snapshot
}

// DiscardRecord notes an event that matched no transition.
type DiscardRecord struct {
	Engine string
	State  fsm.State
	Event  fsm.Event
}

// Observer receives records from an engine's processing step.
//
// Observers are called with the engine's state lock held, from the engine's
// own goroutine. They must return promptly and must not call back into the
// engine that notified them.
type Observer interface {
	Transitioned(TransitionRecord)
	Displayed(DisplayRecord)
	Discarded(DiscardRecord)
}

// LogObserver writes records as structured log lines.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o LogObserver) Transitioned(r TransitionRecord) {
	o.logger().Info("transition",
		"ts", r.Stamp(),
		"engine", r.Engine,
		"description", r.Description,
		"event", r.Event,
	)
}

func (o LogObserver) Displayed(r DisplayRecord) {
	o.logger().Info("display",
		"engine", r.Engine,
		"state", r.State,
		"last_event", r.LastEvent,
	)
}

func (o LogObserver) Discarded(r DiscardRecord) {
	o.logger().Debug("discard",
		"engine", r.Engine,
		"state", r.State,
		"event", r.Event,
	)
}
