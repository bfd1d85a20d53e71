package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsmrt/internal/engine"
	"github.com/roach88/fsmrt/internal/fsm"
)

func TestCollector_RecordsEngineActivity(t *testing.T) {
	clock := NewManualClock(time.Time{})
	c := NewCollector()
	table := fsm.NewTable([]fsm.Transition{
		{From: fsm.StateInit, Event: fsm.EventStart, To: "DontWalk", Description: "Initial -> DontWalk"},
		{From: "DontWalk", Event: "Walk", To: "Walk", Description: "DontWalk -> Walk"},
	})
	e := engine.New("crosswalk", table,
		engine.WithObserver(c),
		engine.WithEpoch(clock.Epoch()),
		engine.WithNow(clock.Now),
	)

	for _, ev := range []fsm.Event{fsm.EventStart, "Blinking", "Walk", fsm.EventDisplay} {
		clock.Advance(250 * time.Millisecond)
		_, err := e.ProcessEvent(ev)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"Initial -> DontWalk", "DontWalk -> Walk"}, c.Descriptions("crosswalk"))
	assert.Equal(t, []fsm.State{fsm.StateInit, "DontWalk", "Walk"}, c.Path("crosswalk"))
	assert.Empty(t, c.Transitions("stoplight"))
	assert.Equal(t, "0.750", c.Transitions("")[1].Stamp())

	require.Len(t, c.Discards(), 1)
	assert.Equal(t, fsm.Event("Blinking"), c.Discards()[0].Event)

	require.Len(t, c.Displays(), 1)
	assert.Equal(t, fsm.State("Walk"), c.Displays()[0].State)

	c.Reset()
	assert.Empty(t, c.Transitions(""))
	assert.Nil(t, c.Path("crosswalk"))
}

var _ engine.Observer = (*Collector)(nil)
