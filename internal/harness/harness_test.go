package harness

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_AllScenariosPass(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.Len(t, scenarios, 4)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"stoplight_start", "button_cycle", "display_is_passive"} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, loadTestScenario(t, name)))
		})
	}
}

func TestRun_AwaitTimeoutFails(t *testing.T) {
	s := &Scenario{
		Name:        "stuck",
		Description: "crosswalk never walks without a light",
		Steps: []Step{
			{Send: &SendStep{Target: "crosswalk", Event: "Start"}},
			{Await: &AwaitStep{Engine: "crosswalk", State: "Walk", Timeout: 30 * time.Millisecond}},
			{Send: &SendStep{Target: "stoplight", Event: "Start"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "timed out")

	// The run stops at the failing step.
	assert.Equal(t, "Init", string(result.States["stoplight"]))
	assert.Equal(t, "DontWalk", string(result.States["crosswalk"]))
}

func TestRun_ExpectationFailuresReported(t *testing.T) {
	s := &Scenario{
		Name:        "wrong",
		Description: "expectations that do not hold",
		Steps:       []Step{{Send: &SendStep{Target: "crosswalk", Event: "Start"}}},
		Expect: Expect{
			States:      map[string]string{"crosswalk": "Walk", "ghost": "Init"},
			Transitions: map[string][]string{"crosswalk": {"nope"}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Engine: "crosswalk", Description: "missing"},
			{Type: AssertTraceCount, Engine: "crosswalk", Count: 5},
			{Type: AssertTraceOrder, Engine: "crosswalk", Descriptions: []string{"Initial -> DontWalk", "later"}},
			{Type: AssertDiscardCount, Engine: "crosswalk", Count: 1},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 7)
	assert.Contains(t, result.Errors[0], "final_state (crosswalk)")
	assert.Contains(t, result.Errors[1], "no such engine")
}

func TestRun_UnknownAwaitEngine(t *testing.T) {
	s := &Scenario{
		Name:        "unknown",
		Description: "await on an engine that does not exist",
		Steps:       []Step{{Await: &AwaitStep{Engine: "ghost", State: "Init"}}},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `unknown engine "ghost"`)
}

func TestRun_BadConfig(t *testing.T) {
	s := &Scenario{
		Name:        "bad",
		Description: "config directory missing",
		Config:      filepath.Join(t.TempDir(), "missing"),
		Steps:       []Step{{Command: "S"}},
	}
	_, err := Run(s)
	require.Error(t, err)
}

func TestFormatTrace(t *testing.T) {
	r := NewResult()
	r.States["b"] = "Two"
	r.States["a"] = "Init"
	r.Trace = []TraceEvent{
		{Type: TraceTransition, Engine: "b", From: "Init", Event: "Go", To: "Two", Description: "go"},
		{Type: TraceDiscard, Engine: "b", From: "Two", Event: "Go"},
	}

	want := "# scenario: x\n[a] final=Init\n[b] final=Two\n  Init -Go-> Two | go\n"
	assert.Equal(t, want, string(FormatTrace("x", r)))
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Engine:   "stoplight",
		Expected: "3 transitions",
		Actual:   "1",
		Trace:    []TraceEvent{{Type: TraceTransition, Engine: "stoplight", From: "Init", Event: "Start", To: "Green", Description: "Initial -> Green"}},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count (stoplight)")
	assert.Contains(t, msg, "Expected: 3 transitions")
	assert.Contains(t, msg, "[1] Init -Start-> Green | Initial -> Green")
}
