package harness

import (
	"github.com/roach88/fsmrt/internal/engine"
	"github.com/roach88/fsmrt/internal/fsm"
)

// Trace event types.
const (
	TraceTransition = "transition"
	TraceDiscard    = "discard"
	TraceDisplay    = "display"
)

// TraceEvent is one engine record, flattened for reporting.
type TraceEvent struct {
	Type        string    `json:"type"`
	Engine      string    `json:"engine"`
	From        fsm.State `json:"from,omitempty"`
	Event       fsm.Event `json:"event,omitempty"`
	To          fsm.State `json:"to,omitempty"`
	Description string    `json:"description,omitempty"`
}

// String renders e on one line.
func (e TraceEvent) String() string {
	switch e.Type {
	case TraceTransition:
		return string(e.From) + " -" + string(e.Event) + "-> " + string(e.To) + " | " + e.Description
	case TraceDiscard:
		return "discard " + string(e.Event) + " in " + string(e.From)
	default:
		return "display " + string(e.From) + " last=" + string(e.Event)
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when no step, expectation or assertion failed.
	Pass bool `json:"pass"`

	// Trace holds every record grouped by engine name, engines sorted.
	Trace []TraceEvent `json:"trace"`

	// States holds each engine's final state.
	States map[string]fsm.State `json:"states"`

	// Errors describes every failure. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		States: make(map[string]fsm.State),
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Transitions returns the transition events of name in order.
func (r *Result) Transitions(name string) []TraceEvent {
	return r.filter(name, TraceTransition)
}

// Descriptions returns the descriptions of name's transitions in order.
func (r *Result) Descriptions(name string) []string {
	out := []string{}
	for _, e := range r.Transitions(name) {
		out = append(out, e.Description)
	}
	return out
}

func (r *Result) filter(name, typ string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Engine == name && e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func transitionEvent(rec engine.TransitionRecord) TraceEvent {
	return TraceEvent{
		Type:        TraceTransition,
		Engine:      rec.Engine,
		From:        rec.From,
		Event:       rec.Event,
		To:          rec.To,
		Description: rec.Description,
	}
}

func discardEvent(rec engine.DiscardRecord) TraceEvent {
	return TraceEvent{Type: TraceDiscard, Engine: rec.Engine, From: rec.State, Event: rec.Event}
}

func displayEvent(rec engine.DisplayRecord) TraceEvent {
	return TraceEvent{Type: TraceDisplay, Engine: rec.Engine, From: rec.State, Event: rec.LastEvent}
}
