package fsm

import (
	"errors"
	"fmt"
)

// Transition is one row of a transition table.
type Transition struct {
	From        State
	Event       Event
	Exit        *Action
	To          State
	Entry       *Action
	Description string
}

type key struct {
	from  State
	event Event
}

// Table is an immutable (state, event) -> Transition mapping.
type Table struct {
	transitions []Transition
	index       map[key]int
	duplicates  []Transition
}

// NewTable indexes transitions. Declaration order is preserved; for a
// duplicated (from, event) pair the first row wins.
func NewTable(transitions []Transition) *Table {
	t := &Table{
		transitions: make([]Transition, len(transitions)),
		index:       make(map[key]int, len(transitions)),
	}
	copy(t.transitions, transitions)

	for i, tr := range t.transitions {
		k := key{from: tr.From, event: tr.Event}
		if _, exists := t.index[k]; exists {
			t.duplicates = append(t.duplicates, tr)
			continue
		}
		t.index[k] = i
	}
	return t
}

// Lookup returns the transition for (from, event), if any.
func (t *Table) Lookup(from State, event Event) (Transition, bool) {
	i, ok := t.index[key{from: from, event: event}]
	if !ok {
		return Transition{}, false
	}
	return t.transitions[i], true
}

// Transitions returns a copy of the rows in declaration order.
func (t *Table) Transitions() []Transition {
	out := make([]Transition, len(t.transitions))
	copy(out, t.transitions)
	return out
}

// Duplicates returns rows shadowed by an earlier row with the same pair.
func (t *Table) Duplicates() []Transition {
	return t.duplicates
}

// Len is the number of rows, shadowed ones included.
func (t *Table) Len() int {
	return len(t.transitions)
}

// States returns every state the table mentions, Init first, then in order
// of first appearance.
func (t *Table) States() []State {
	seen := map[State]bool{StateInit: true}
	out := []State{StateInit}
	for _, tr := range t.transitions {
		for _, s := range []State{tr.From, tr.To} {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// Events returns every event the table reacts to, in order of first appearance.
func (t *Table) Events() []Event {
	seen := make(map[Event]bool)
	var out []Event
	for _, tr := range t.transitions {
		if !seen[tr.Event] {
			seen[tr.Event] = true
			out = append(out, tr.Event)
		}
	}
	return out
}

// Targets returns the explicit targets named by every step of every action.
// Self-addressed steps are not included.
func (t *Table) Targets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, tr := range t.transitions {
		for _, a := range []*Action{tr.Exit, tr.Entry} {
			if a == nil {
				continue
			}
			for _, s := range a.Steps {
				if (s.Kind == StepEmit || s.Kind == StepAfter) && s.Target != "" && !seen[s.Target] {
					seen[s.Target] = true
					out = append(out, s.Target)
				}
			}
		}
	}
	return out
}

// Validate checks invariants a table must hold before an engine runs it.
func (t *Table) Validate() error {
	var errs []error
	for i, tr := range t.transitions {
		if tr.From == "" || tr.To == "" {
			errs = append(errs, fmt.Errorf("transition %d: from and to states are required", i))
		}
		if tr.Event == "" {
			errs = append(errs, fmt.Errorf("transition %d: event is required", i))
		}
		if tr.Event.IsControl() {
			errs = append(errs, fmt.Errorf("transition %d: control event %s cannot appear in a table", i, tr.Event))
		}
		for _, a := range []*Action{tr.Exit, tr.Entry} {
			if a == nil {
				continue
			}
			for _, s := range a.Steps {
				if err := validateStep(s); err != nil {
					errs = append(errs, fmt.Errorf("transition %d (%s): %w", i, tr.Description, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func validateStep(s Step) error {
	switch s.Kind {
	case StepEmit:
		if s.Event == "" {
			return fmt.Errorf("emit step needs an event")
		}
	case StepAfter:
		if s.Event == "" {
			return fmt.Errorf("after step needs an event")
		}
		if s.Delay <= 0 {
			return fmt.Errorf("after step needs a positive delay, got %s", s.Delay)
		}
	case StepSleep:
		if s.Delay < 0 || s.Delay > MaxEmulatedDelay {
			return fmt.Errorf("sleep %s outside [0, %s]", s.Delay, MaxEmulatedDelay)
		}
	case StepLog:
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	return nil
}
