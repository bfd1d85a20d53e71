// Package runtime wires a loaded configuration into running engines.
//
// A Runtime owns one engine per configured machine, the router they share,
// the one-shot scheduler behind "after" steps, and the optional periodic
// ticker. Engines and the ticker each run on their own goroutine.
//
// Lifecycle:
//
//	rt, err := runtime.New(cfg, runtime.WithLogger(logger))
//	rt.Start(ctx)
//	rt.Send("stoplight", fsm.EventStart)
//	rt.Shutdown()   // broadcasts Exit
//	err = rt.Wait() // nil unless an engine was poisoned
//
// A poisoned engine is fatal for the whole runtime: the first fatal error is
// kept, Exit is broadcast to everything still running, and Wait returns that
// error once every loop has ended.
package runtime
