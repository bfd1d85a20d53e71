package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an expectation or assertion fails.
// It includes the engine's trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Engine   string       // Engine the check is about
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // That engine's trace
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s (%s)\n", e.Type, e.Engine)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, event)
		}
	}

	return buf.String()
}

// checkExpect compares final states and exact transition sequences.
func checkExpect(result *Result, expect Expect) []error {
	var errs []error

	for _, name := range sortedKeys(expect.States) {
		want := expect.States[name]
		got, ok := result.States[name]
		if !ok {
			errs = append(errs, &AssertionError{
				Type:     "final_state",
				Engine:   name,
				Expected: want,
				Actual:   "no such engine",
			})
			continue
		}
		if string(got) != want {
			errs = append(errs, &AssertionError{
				Type:     "final_state",
				Engine:   name,
				Expected: want,
				Actual:   string(got),
				Trace:    result.Transitions(name),
			})
		}
	}

	for _, name := range sortedKeys(expect.Transitions) {
		want := expect.Transitions[name]
		got := result.Descriptions(name)
		if !slices.Equal(got, want) {
			errs = append(errs, &AssertionError{
				Type:     "transitions",
				Engine:   name,
				Expected: fmt.Sprintf("%q", want),
				Actual:   fmt.Sprintf("%q", got),
				Trace:    result.Transitions(name),
			})
		}
	}

	return errs
}

// evaluateAssertion dispatches on the assertion type.
func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result, a)
	case AssertTraceOrder:
		return assertTraceOrder(result, a)
	case AssertTraceCount:
		return assertTraceCount(result, a)
	case AssertDiscardCount:
		return assertDiscardCount(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertTraceContains(result *Result, a Assertion) error {
	if slices.Contains(result.Descriptions(a.Engine), a.Description) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Engine:   a.Engine,
		Expected: fmt.Sprintf("transition %q", a.Description),
		Actual:   "not found in trace",
		Trace:    result.Transitions(a.Engine),
	}
}

// assertTraceOrder checks the descriptions occur in order.
// They don't need to be consecutive.
func assertTraceOrder(result *Result, a Assertion) error {
	descs := result.Descriptions(a.Engine)

	next := 0
	for _, d := range descs {
		if next < len(a.Descriptions) && d == a.Descriptions[next] {
			next++
		}
	}
	if next == len(a.Descriptions) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Engine:   a.Engine,
		Expected: fmt.Sprintf("transitions in order: %q", a.Descriptions),
		Actual:   fmt.Sprintf("%q not found after %q", a.Descriptions[next], a.Descriptions[:next]),
		Trace:    result.Transitions(a.Engine),
	}
}

// assertTraceCount counts transitions, optionally only those with a.Description.
func assertTraceCount(result *Result, a Assertion) error {
	count := 0
	for _, d := range result.Descriptions(a.Engine) {
		if a.Description == "" || d == a.Description {
			count++
		}
	}
	if count == a.Count {
		return nil
	}

	what := "transitions"
	if a.Description != "" {
		what = fmt.Sprintf("occurrences of %q", a.Description)
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Engine:   a.Engine,
		Expected: fmt.Sprintf("%d %s", a.Count, what),
		Actual:   fmt.Sprintf("%d", count),
		Trace:    result.Transitions(a.Engine),
	}
}

func assertDiscardCount(result *Result, a Assertion) error {
	discards := result.filter(a.Engine, TraceDiscard)
	if len(discards) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertDiscardCount,
		Engine:   a.Engine,
		Expected: fmt.Sprintf("%d discards", a.Count),
		Actual:   fmt.Sprintf("%d", len(discards)),
		Trace:    discards,
	}
}
