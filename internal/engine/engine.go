package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/fsmrt/internal/fsm"
)

// Engine is one running state machine.
//
// An engine owns its current state and last event. Both are mutated only by
// ProcessEvent, which holds the engine's lock from table lookup through the
// exit action, the entry action and the state commit. Snapshot takes the
// same lock, so no other goroutine ever observes a half-applied transition.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Snapshot(): safe from any goroutine except from inside a hook or
//     observer of the same engine
type Engine struct {
	name  string
	table *fsm.Table

	mu        sync.RWMutex
	state     fsm.State
	lastEvent fsm.Event
	poisoned  *RuntimeError

	queue     *eventQueue
	clock     *Clock
	emitter   fsm.Emitter
	observers []Observer
	logger    *slog.Logger
	epoch     time.Time
	now       func() time.Time
	done      chan struct{}
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEmitter sets the capability handed to action hooks.
// Default: an emitter that drops everything.
func WithEmitter(em fsm.Emitter) Option {
	return func(e *Engine) {
		e.emitter = em
	}
}

// WithObserver adds an observer. Observers are notified in the order added.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithEpoch sets the instant transition timestamps are measured from.
// Default: construction time.
func WithEpoch(epoch time.Time) Option {
	return func(e *Engine) {
		e.epoch = epoch
	}
}

// WithNow replaces the wall clock used for timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMetrics registers m as an observer and exports the inbox depth.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, m)
		m.Track(e)
	}
}

// New creates an engine in the Init state.
func New(name string, table *fsm.Table, opts ...Option) *Engine {
	e := &Engine{
		name:    name,
		table:   table,
		state:   fsm.StateInit,
		queue:   newEventQueue(),
		clock:   NewClock(),
		emitter: dropEmitter{},
		logger:  slog.Default(),
		now:     time.Now,
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.epoch.IsZero() {
		e.epoch = e.now()
	}

	return e
}

// Name returns the engine's routing name.
func (e *Engine) Name() string {
	return e.name
}

// Table returns the engine's transition table.
func (e *Engine) Table() *fsm.Table {
	return e.table
}

// Enqueue submits an event to the engine's inbox.
// Thread-safe: may be called from any goroutine.
//
// Returns false once the processing loop has ended.
func (e *Engine) Enqueue(ev fsm.Event) bool {
	ok := e.queue.Enqueue(ev)
	if ok {
		e.logger.Debug("event queued", "engine", e.name, "event", ev)
	}
	return ok
}

// QueueLen returns the number of events waiting in the inbox.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Stop closes the inbox without an Exit event. Run returns nil.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Snapshot returns the committed state and last event.
// Blocks while a transition is in flight.
func (e *Engine) Snapshot() (Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.poisoned != nil {
		return Snapshot{}, e.poisoned
	}
	return e.snapshotLocked(), nil
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{Engine: e.name, State: e.state, LastEvent: e.lastEvent}
}

// Run is the engine's processing loop.
//
// It returns nil when an Exit event is dequeued or Stop is called, ctx.Err()
// when ctx is cancelled, and a *RuntimeError when a hook fails. In every case
// the inbox is closed on return, so later sends report disconnection.
//
// Must be called from exactly one goroutine.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	defer e.queue.Close()

	e.logger.Info("engine starting", "engine", e.name, "transitions", e.table.Len())

	for {
		ev, ok := e.queue.TryDequeue()
		if ok {
			outcome, err := e.ProcessEvent(ev)
			if err != nil {
				e.logger.Error("engine aborted", "engine", e.name, "error", err)
				return err
			}
			if outcome == OutcomeExit {
				e.logger.Info("engine stopping: exit event", "engine", e.name)
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled", "engine", e.name)
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed when the queue is closed
			if e.queue.Closed() {
				e.logger.Info("engine stopping: inbox closed", "engine", e.name)
				return nil
			}
		}
	}
}

// ProcessEvent applies one event.
//
// Exit returns OutcomeExit without touching the table. Display notifies
// observers with a DisplayRecord and never changes state. Any other event
// becomes the last event and is looked up against the current state: no
// match is a discard; a match runs the exit action, then the entry action,
// then commits the target state and emits a TransitionRecord.
//
// A panic from a hook poisons the engine: the panic is converted into a
// *RuntimeError, and every later call returns the same error.
func (e *Engine) ProcessEvent(ev fsm.Event) (outcome Outcome, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.poisoned != nil {
		return OutcomeFailed, e.poisoned
	}

	defer func() {
		if r := recover(); r != nil {
			e.poisoned = newPoisonedError(e.name, string(e.state), string(ev), r)
			outcome, err = OutcomeFailed, e.poisoned
		}
	}()

	return e.step(ev), nil
}

// step does the work of ProcessEvent with the lock held.
func (e *Engine) step(ev fsm.Event) Outcome {
	switch ev {
	case fsm.EventExit:
		return OutcomeExit

	case fsm.EventDisplay:
		rec := DisplayRecord{Seq: e.clock.Next(), Snapshot: e.snapshotLocked()}
		for _, o := range e.observers {
			o.Displayed(rec)
		}
		return OutcomeDisplayed
	}

	e.lastEvent = ev

	tr, ok := e.table.Lookup(e.state, ev)
	if !ok {
		e.logger.Debug("no match, discarding", "engine", e.name, "state", e.state, "event", ev)
		rec := DiscardRecord{Engine: e.name, State: e.state, Event: ev}
		for _, o := range e.observers {
			o.Discarded(rec)
		}
		return OutcomeDiscarded
	}

	e.logger.Debug("match", "engine", e.name, "state", e.state, "event", ev, "to", tr.To)

	hc := fsm.HookContext{
		Engine:  e.name,
		Emitter: e.emitter,
		Logger:  e.logger,
	}
	tr.Exit.Run(hc)
	tr.Entry.Run(hc)

	from := e.state
	e.state = tr.To

	rec := TransitionRecord{
		Seq:         e.clock.Next(),
		Elapsed:     e.now().Sub(e.epoch),
		Engine:      e.name,
		From:        from,
		Event:       ev,
		To:          tr.To,
		Description: tr.Description,
	}
	for _, o := range e.observers {
		o.Transitioned(rec)
	}
	return OutcomeTransitioned
}

// dropEmitter is the default emitter for engines built without routing.
type dropEmitter struct{}

func (dropEmitter) Emit(target string, ev fsm.Event) {
	slog.Debug("no emitter configured, dropping", "target", target, "event", ev)
}

func (dropEmitter) EmitAfter(delay time.Duration, target string, ev fsm.Event) {
	slog.Debug("no emitter configured, dropping", "target", target, "event", ev, "delay", delay)
}
