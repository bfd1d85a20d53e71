package testutil

import (
	"sync"

	"github.com/roach88/fsmrt/internal/engine"
	"github.com/roach88/fsmrt/internal/fsm"
)

// Collector is an engine.Observer that keeps every record in memory.
//
// Thread-safety: All methods are safe for concurrent use. Engines call the
// observer methods from their own goroutines.
type Collector struct {
	mu          sync.Mutex
	transitions []engine.TransitionRecord
	displays    []engine.DisplayRecord
	discards    []engine.DiscardRecord
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Transitioned(r engine.TransitionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitions = append(c.transitions, r)
}

func (c *Collector) Displayed(r engine.DisplayRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.displays = append(c.displays, r)
}

func (c *Collector) Discarded(r engine.DiscardRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discards = append(c.discards, r)
}

// Transitions returns transition records for name, or for every engine when
// name is empty, in arrival order.
func (c *Collector) Transitions(name string) []engine.TransitionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []engine.TransitionRecord
	for _, r := range c.transitions {
		if name == "" || r.Engine == name {
			out = append(out, r)
		}
	}
	return out
}

// Descriptions returns the descriptions of name's transitions in order.
func (c *Collector) Descriptions(name string) []string {
	var out []string
	for _, r := range c.Transitions(name) {
		out = append(out, r.Description)
	}
	return out
}

// Path returns name's visited states: the first From followed by every To.
func (c *Collector) Path(name string) []fsm.State {
	recs := c.Transitions(name)
	if len(recs) == 0 {
		return nil
	}
	out := []fsm.State{recs[0].From}
	for _, r := range recs {
		out = append(out, r.To)
	}
	return out
}

// Displays returns every display record in arrival order.
func (c *Collector) Displays() []engine.DisplayRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]engine.DisplayRecord, len(c.displays))
	copy(out, c.displays)
	return out
}

// Discards returns every discard record in arrival order.
func (c *Collector) Discards() []engine.DiscardRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]engine.DiscardRecord, len(c.discards))
	copy(out, c.discards)
	return out
}

// Reset drops everything collected so far.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitions = nil
	c.displays = nil
	c.discards = nil
}
