// Package fsm holds the static data model of the runtime: states, events,
// transition descriptors, the per-engine transition table, and the action
// hooks a transition carries.
//
// Nothing in this package is concurrent. A Table is built once and is
// read-only afterwards, so a single Table may back any number of engines.
//
// # Lookup
//
// A Table maps (from state, event) to at most one Transition. When a table is
// authored with duplicate pairs the first declared transition wins and the
// later ones are reported by Duplicates. A missing pair is a discard, not an
// error.
//
// # Actions
//
// Exit and entry actions are data: an ordered list of Steps (emit, after,
// sleep, log) plus an optional Go hook. Both receive a HookContext carrying
// the owning engine's name and a send-only Emitter. Hooks never get a handle
// on the engine itself, so a self-addressed event always travels through the
// engine's asynchronous inbox.
package fsm
