package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsmrt/internal/engine"
	"github.com/roach88/fsmrt/internal/fsm"
	"github.com/roach88/fsmrt/internal/journal"
)

// seedJournal writes two runs; the second has transitions and displays.
func seedJournal(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fsmrt.db")

	st, err := journal.Open(path)
	require.NoError(t, err)
	defer st.Close()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, st.BeginRun(ctx, journal.Run{ID: "run-a", StartedAt: base, Source: "stoplight.cue", Engines: []string{"stoplight", "crosswalk"}}))
	require.NoError(t, st.BeginRun(ctx, journal.Run{ID: "run-b", StartedAt: base.Add(time.Minute), Source: "machines", Engines: []string{"stoplight", "crosswalk"}}))

	records := []engine.TransitionRecord{
		{Seq: 1, Elapsed: 0, Engine: "stoplight", From: "Init", Event: fsm.EventStart, To: "Green", Description: "Initial -> Green"},
		{Seq: 1, Elapsed: 2 * time.Millisecond, Engine: "crosswalk", From: "Init", Event: fsm.EventStart, To: "DontWalk", Description: "Initial -> DontWalk"},
		{Seq: 2, Elapsed: 10*time.Second + 5*time.Millisecond, Engine: "stoplight", From: "Green", Event: "Timer", To: "Yellow", Description: "Green -> Yellow (Timer)"},
	}
	for _, r := range records {
		require.NoError(t, st.WriteTransition(ctx, "run-b", r))
	}
	require.NoError(t, st.WriteDisplay(ctx, "run-b", engine.DisplayRecord{
		Seq:      3,
		Snapshot: engine.Snapshot{Engine: "stoplight", State: "Yellow", LastEvent: "Timer"},
	}))
	return path
}

func executeTrace(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTrace_ListsRuns(t *testing.T) {
	db := seedJournal(t)

	out, err := executeTrace(t, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Runs (2):")
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "run-b")
	assert.Contains(t, out, "[stoplight, crosswalk]")
}

func TestTrace_ListsRunsJSON(t *testing.T) {
	db := seedJournal(t)

	out, err := executeTrace(t, "json", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   []RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "run-a", resp.Data[0].ID)
	assert.Equal(t, "2026-01-02T03:04:05Z", resp.Data[0].StartedAt)
}

func TestTrace_Run(t *testing.T) {
	db := seedJournal(t)

	out, err := executeTrace(t, "text", "--db", db, "--run", "run-b")
	require.NoError(t, err)

	assert.Contains(t, out, "Run: run-b")
	assert.Contains(t, out, "Transitions (3):")
	assert.Contains(t, out, "0.000 stoplight: Init -Start-> Green | Initial -> Green")
	assert.Contains(t, out, "10.005 stoplight: Green -Timer-> Yellow | Green -> Yellow (Timer)")
	assert.Contains(t, out, "stoplight: state=Yellow last_event=Timer")
	assert.Contains(t, out, "Final states:\n  stoplight: Yellow\n  crosswalk: DontWalk\n")
}

func TestTrace_LatestAndEngineFilter(t *testing.T) {
	db := seedJournal(t)

	out, err := executeTrace(t, "json", "--db", db, "--run", "latest", "--engine", "crosswalk")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "run-b", resp.Data.Run.ID)
	require.Len(t, resp.Data.Transitions, 1)
	assert.Equal(t, "Initial -> DontWalk", resp.Data.Transitions[0].Description)
	assert.Equal(t, "0.002", resp.Data.Transitions[0].Time)
	assert.Empty(t, resp.Data.Displays)
	assert.Equal(t, map[string]string{"crosswalk": "DontWalk"}, resp.Data.Final)
}

func TestTrace_UnknownRun(t *testing.T) {
	db := seedJournal(t)

	_, err := executeTrace(t, "text", "--db", db, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found")
}

func TestTrace_MissingDatabase(t *testing.T) {
	_, err := executeTrace(t, "text", "--db", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTrace_RequiresDB(t *testing.T) {
	_, err := executeTrace(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTrace_EmptyJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	st, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeTrace(t, "text", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")

	_, err = executeTrace(t, "text", "--db", path, "--run", "latest")
	require.Error(t, err)
}
