package fsm

// State is one named variant of an engine's state set.
type State string

// Event is one named variant of the event set shared by all engines.
type Event string

// StateInit is the state every engine starts in.
const StateInit State = "Init"

// Built-in events. Domain-specific events (Walk, Blinking, ...) are declared
// by configuration.
const (
	EventStart   Event = "Start"
	EventTimer   Event = "Timer"
	EventButton  Event = "Button"
	EventDisplay Event = "Display"
	EventExit    Event = "Exit"
)

// IsControl reports whether e is handled by the engine loop itself and never
// looked up in a transition table.
func (e Event) IsControl() bool {
	return e == EventDisplay || e == EventExit
}

func (s State) String() string { return string(s) }

func (e Event) String() string { return string(e) }

// Addressed is the unit of inter-component communication: an event and the
// name of the engine (or other inbox) it is sent to.
type Addressed struct {
	Target string
	Event  Event
}
