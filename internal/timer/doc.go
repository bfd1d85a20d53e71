// Package timer injects time-driven events into the router.
//
// Ticker sends one fixed event to one fixed target at a fixed interval. It
// is itself registered with the router so that the Exit broadcast reaches it,
// and it also stops as soon as a tick comes back Disconnected: a target that
// has shut down is a normal end of life, not an error.
//
// Scheduler is the one-shot primitive behind the "after" action step. Every
// call is independent, nothing is tracked per call, and a pending delivery
// cannot be cancelled. When the delay elapses the event is routed once and
// the outcome is only logged.
package timer
