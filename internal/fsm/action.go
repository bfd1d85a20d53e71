package fsm

import (
	"fmt"
	"log/slog"
	"time"
)

// MaxEmulatedDelay bounds a sleep step. Anything longer must be expressed as
// an after step so the engine goroutine is not held.
const MaxEmulatedDelay = 5 * time.Second

// Emitter is the send-only capability handed to action hooks.
type Emitter interface {
	// Emit delivers ev to target's inbox without waiting for it to be processed.
	Emit(target string, ev Event)
	// EmitAfter delivers ev to target once, after delay. Not cancellable.
	EmitAfter(delay time.Duration, target string, ev Event)
}

// HookContext is what an action sees while it runs.
type HookContext struct {
	Engine  string
	Emitter Emitter
	Logger  *slog.Logger
}

// HookFunc is an optional Go callable attached to an Action. It runs after
// the action's steps.
type HookFunc func(hc HookContext)

// StepKind tags a Step variant.
type StepKind string

const (
	StepEmit  StepKind = "emit"
	StepAfter StepKind = "after"
	StepSleep StepKind = "sleep"
	StepLog   StepKind = "log"
)

// Step is one side effect of an action. Target "" addresses the owning engine.
type Step struct {
	Kind    StepKind
	Target  string
	Event   Event
	Delay   time.Duration
	Message string
}

// Emit returns a step that sends ev to target immediately.
func Emit(target string, ev Event) Step {
	return Step{Kind: StepEmit, Target: target, Event: ev}
}

// After returns a step that sends ev to target once, after delay.
func After(delay time.Duration, target string, ev Event) Step {
	return Step{Kind: StepAfter, Target: target, Event: ev, Delay: delay}
}

// Sleep returns a bounded emulated delay step.
func Sleep(delay time.Duration) Step {
	return Step{Kind: StepSleep, Delay: delay}
}

// Log returns a step that only writes a diagnostic line.
func Log(message string) Step {
	return Step{Kind: StepLog, Message: message}
}

func (s Step) String() string {
	switch s.Kind {
	case StepEmit:
		return fmt.Sprintf("emit %s to %s", s.Event, targetName(s.Target))
	case StepAfter:
		return fmt.Sprintf("after %s emit %s to %s", s.Delay, s.Event, targetName(s.Target))
	case StepSleep:
		return fmt.Sprintf("sleep %s", s.Delay)
	case StepLog:
		return fmt.Sprintf("log %q", s.Message)
	default:
		return fmt.Sprintf("step(%s)", s.Kind)
	}
}

func targetName(t string) string {
	if t == "" {
		return "self"
	}
	return t
}

// Action is an exit or entry action. The zero value does nothing.
type Action struct {
	Steps []Step
	Hook  HookFunc
}

// Do builds an Action from steps.
func Do(steps ...Step) *Action {
	return &Action{Steps: steps}
}

// Run executes the steps in order, then the hook.
func (a *Action) Run(hc HookContext) {
	if a == nil {
		return
	}
	logger := hc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, s := range a.Steps {
		target := s.Target
		if target == "" {
			target = hc.Engine
		}
		switch s.Kind {
		case StepEmit:
			logger.Debug("action emit", "engine", hc.Engine, "target", target, "event", s.Event)
			hc.Emitter.Emit(target, s.Event)
		case StepAfter:
			logger.Debug("action schedule", "engine", hc.Engine, "target", target, "event", s.Event, "delay", s.Delay)
			hc.Emitter.EmitAfter(s.Delay, target, s.Event)
		case StepSleep:
			d := min(s.Delay, MaxEmulatedDelay)
			logger.Debug("action sleep", "engine", hc.Engine, "delay", d)
			time.Sleep(d)
		case StepLog:
			logger.Info(s.Message, "engine", hc.Engine)
		}
	}
	if a.Hook != nil {
		a.Hook(hc)
	}
}
