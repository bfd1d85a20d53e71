package fsm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Lookup(t *testing.T) {
	table := NewTable([]Transition{
		{From: StateInit, Event: EventStart, To: "Green", Description: "Initial -> Green"},
		{From: "Green", Event: EventTimer, To: "Yellow", Description: "Green -> Yellow (Timer)"},
	})

	tr, ok := table.Lookup(StateInit, EventStart)
	require.True(t, ok)
	assert.Equal(t, State("Green"), tr.To)
	assert.Equal(t, "Initial -> Green", tr.Description)

	_, ok = table.Lookup("Green", EventStart)
	assert.False(t, ok, "unmatched pair is a discard")
}

func TestTable_FirstDeclaredWins(t *testing.T) {
	table := NewTable([]Transition{
		{From: "A", Event: "Go", To: "B", Description: "first"},
		{From: "A", Event: "Go", To: "C", Description: "second"},
	})

	tr, ok := table.Lookup("A", "Go")
	require.True(t, ok)
	assert.Equal(t, State("B"), tr.To)

	require.Len(t, table.Duplicates(), 1)
	assert.Equal(t, "second", table.Duplicates()[0].Description)
	assert.Equal(t, 2, table.Len())
}

func TestTable_CopiesInput(t *testing.T) {
	rows := []Transition{{From: "A", Event: "Go", To: "B"}}
	table := NewTable(rows)
	rows[0].To = "Z"

	tr, _ := table.Lookup("A", "Go")
	assert.Equal(t, State("B"), tr.To)
}

func TestTable_Deterministic(t *testing.T) {
	table := NewTable([]Transition{
		{From: "A", Event: "Go", To: "B"},
		{From: "B", Event: "Go", To: "A"},
	})
	for _, s := range []State{"A", "B", "C"} {
		for _, e := range []Event{"Go", "Stop"} {
			first, firstOK := table.Lookup(s, e)
			for i := 0; i < 10; i++ {
				got, ok := table.Lookup(s, e)
				assert.Equal(t, firstOK, ok)
				assert.Equal(t, first.To, got.To)
			}
		}
	}
}

func TestTable_StatesEventsTargets(t *testing.T) {
	table := NewTable([]Transition{
		{From: StateInit, Event: EventStart, To: "Green", Entry: Do(Emit("crosswalk", "DontWalk"))},
		{From: "Green", Event: EventTimer, To: "Yellow", Entry: Do(Emit("crosswalk", "Blinking"), After(time.Second, "", EventTimer))},
	})

	assert.Equal(t, []State{StateInit, "Green", "Yellow"}, table.States())
	assert.Equal(t, []Event{EventStart, EventTimer}, table.Events())
	assert.Equal(t, []string{"crosswalk"}, table.Targets())
}

func TestTable_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rows    []Transition
		wantErr string
	}{
		{
			name: "valid",
			rows: []Transition{{From: StateInit, Event: EventStart, To: "A", Entry: Do(Sleep(time.Second), Log("hi"))}},
		},
		{
			name:    "control event",
			rows:    []Transition{{From: StateInit, Event: EventDisplay, To: "A"}},
			wantErr: "control event Display",
		},
		{
			name:    "missing to",
			rows:    []Transition{{From: StateInit, Event: EventStart}},
			wantErr: "from and to states are required",
		},
		{
			name:    "sleep too long",
			rows:    []Transition{{From: StateInit, Event: EventStart, To: "A", Exit: Do(Sleep(time.Minute))}},
			wantErr: "outside",
		},
		{
			name:    "after without delay",
			rows:    []Transition{{From: StateInit, Event: EventStart, To: "A", Entry: Do(After(0, "x", "Go"))}},
			wantErr: "positive delay",
		},
		{
			name:    "unknown step",
			rows:    []Transition{{From: StateInit, Event: EventStart, To: "A", Entry: Do(Step{Kind: "teleport"})}},
			wantErr: "unknown step kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTable(tt.rows).Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvent_IsControl(t *testing.T) {
	assert.True(t, EventDisplay.IsControl())
	assert.True(t, EventExit.IsControl())
	assert.False(t, EventStart.IsControl())
	assert.False(t, Event("Walk").IsControl())
}
