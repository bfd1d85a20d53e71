// Package engine implements the FSM engine: one processing loop per logical
// actor, fed by an unbounded inbox.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Each engine processes its inbox in a single goroutine (Run). Producers
// (the router, the timer service, action hooks of any engine) only ever
// Enqueue. This gives:
//   - FIFO processing of events sent by one producer
//   - No shared mutable state between engines
//   - A self-addressed event always goes through the inbox, never a
//     re-entrant call
//
// Event Processing Flow:
//  1. Event enqueued (Enqueue never blocks)
//  2. Run dequeues one event at a time
//  3. ProcessEvent intercepts Exit and Display, otherwise looks the event
//     up in the transition table
//  4. On a match: exit action, entry action, commit, TransitionRecord
//  5. Observers (log, metrics, journal) see each record in order
//
// ORDERING CONTRACT:
//
// The entry action runs before the new state is committed. Because the state
// lock is held for the whole step, another engine that reacts to an event
// emitted by the entry action and reads this engine's Snapshot waits for the
// commit and sees the new state.
//
// FAILURE:
//
// A panicking hook poisons the engine. Run returns a *RuntimeError and the
// inbox is closed; Snapshot reports ErrPoisoned from then on.
package engine
