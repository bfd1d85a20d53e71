package config

import (
	"errors"
	"fmt"

	"github.com/roach88/fsmrt/internal/fsm"
)

// Validate checks cross-references the schema cannot express. It returns
// every problem found; entries with Warning set do not block a run.
//
// Step targets and command targets must name an engine or the timer. The
// router would drop a send to any other name silently, so an unknown name
// here is almost always a typo.
func (c *Config) Validate() []ValidationError {
	var out []ValidationError

	if len(c.Engines) == 0 {
		out = append(out, ValidationError{Field: "engine", Code: ErrCodeNoEngines, Message: "no engines defined"})
		return out
	}

	names := make(map[string]bool, len(c.Engines)+1)
	for _, e := range c.Engines {
		names[e.Name] = true
	}
	if c.Timer != nil {
		if names[c.Timer.Name] {
			out = append(out, ValidationError{
				Field:   "timer.name",
				Code:    ErrCodeNameCollision,
				Message: fmt.Sprintf("timer name %q is also an engine name", c.Timer.Name),
			})
		}
		if !names[c.Timer.Target] {
			out = append(out, ValidationError{
				Field:   "timer.target",
				Code:    ErrCodeTimerTarget,
				Message: fmt.Sprintf("unknown engine %q", c.Timer.Target),
			})
		}
		if c.Timer.Interval <= 0 {
			out = append(out, ValidationError{
				Field:   "timer.interval",
				Code:    ErrCodeTimerInterval,
				Message: fmt.Sprintf("interval must be positive, got %s", c.Timer.Interval),
			})
		}
		names[c.Timer.Name] = true
	}

	for _, e := range c.Engines {
		field := "engine." + e.Name
		table := fsm.NewTable(e.Transitions)

		if err := table.Validate(); err != nil {
			for _, msg := range splitJoined(err) {
				out = append(out, ValidationError{Field: field, Code: ErrCodeInvalidTable, Message: msg})
			}
		}

		for _, dup := range table.Duplicates() {
			out = append(out, ValidationError{
				Field:   field,
				Code:    ErrCodeDuplicatePair,
				Message: fmt.Sprintf("(%s, %s) declared more than once; the first declaration wins", dup.From, dup.Event),
				Warning: true,
			})
		}

		for _, target := range table.Targets() {
			if !names[target] {
				out = append(out, ValidationError{
					Field:   field,
					Code:    ErrCodeUnknownTarget,
					Message: fmt.Sprintf("step addresses unknown target %q", target),
				})
			}
		}
	}

	for _, ev := range []fsm.Event{fsm.EventStart, fsm.EventButton} {
		for _, target := range c.Commands[ev] {
			if !names[target] {
				out = append(out, ValidationError{
					Field:   "commands." + string(ev),
					Code:    ErrCodeCommandTarget,
					Message: fmt.Sprintf("unknown target %q", target),
				})
			}
		}
	}

	return out
}

// Errors returns the non-warning entries of Validate.
func (c *Config) Errors() []ValidationError {
	var out []ValidationError
	for _, v := range c.Validate() {
		if !v.Warning {
			out = append(out, v)
		}
	}
	return out
}

func splitJoined(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
