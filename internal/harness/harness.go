package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/fsmrt/internal/command"
	"github.com/roach88/fsmrt/internal/config"
	"github.com/roach88/fsmrt/internal/fsm"
	"github.com/roach88/fsmrt/internal/runtime"
	"github.com/roach88/fsmrt/internal/testutil"
)

// settleTimeout bounds how long Run waits for inboxes to drain before it
// broadcasts Exit.
const settleTimeout = time.Second

// Harness runs one scenario against a live runtime.
type Harness struct {
	rt        *runtime.Runtime
	source    *command.Source
	collector *testutil.Collector
	logger    *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Load the machine definition and build a runtime with a collector
// 2. Run steps in order, stopping at the first failure
// 3. Let inboxes drain, then broadcast Exit and wait for every loop
// 4. Record final states and traces, then check expectations
//
// The returned error is for setup problems only; a failing scenario is
// reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with the runtime's logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	cfg, err := config.Load(scenario.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	collector := testutil.NewCollector()
	opts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithObserver(collector),
		runtime.WithRunID("scenario-" + scenario.Name),
	}
	if scenario.Tick > 0 {
		opts = append(opts, runtime.WithTickInterval(scenario.Tick))
	} else {
		opts = append(opts, runtime.WithoutTimer())
	}

	rt, err := runtime.New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		rt:        rt,
		source:    command.NewSource(rt.Router(), cfg.Commands, command.WithLogger(logger)),
		collector: collector,
		logger:    logger,
	}

	ctx := context.Background()
	if err := rt.Start(ctx); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
			break
		}
	}

	h.settle()
	rt.Shutdown()
	if err := rt.Wait(); err != nil {
		result.AddError(fmt.Sprintf("runtime: %v", err))
	}

	h.collect(result)

	for _, err := range checkExpect(result, scenario.Expect) {
		result.AddError(err.Error())
	}
	for _, a := range scenario.Assertions {
		if err := evaluateAssertion(result, a); err != nil {
			result.AddError(err.Error())
		}
	}

	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	switch {
	case step.Send != nil:
		d := h.rt.Send(step.Send.Target, fsm.Event(step.Send.Event))
		h.logger.Debug("send", "target", step.Send.Target, "event", step.Send.Event, "delivery", d)
		return nil

	case step.Command != "":
		for _, tok := range strings.Fields(step.Command) {
			h.source.Dispatch(tok)
		}
		return nil

	case step.Await != nil:
		return h.await(ctx, *step.Await)

	case step.Sleep > 0:
		time.Sleep(step.Sleep)
		return nil
	}
	return fmt.Errorf("empty step")
}

func (h *Harness) await(ctx context.Context, a AwaitStep) error {
	e, ok := h.rt.Engine(a.Engine)
	if !ok {
		return fmt.Errorf("await: unknown engine %q", a.Engine)
	}

	timeout := a.Timeout
	if timeout == 0 {
		timeout = DefaultAwaitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(2 * time.Millisecond)
	defer tick.Stop()

	var last fsm.State
	for {
		snap, err := e.Snapshot()
		if err != nil {
			return fmt.Errorf("await %s: %w", a.Engine, err)
		}
		if snap.State == fsm.State(a.State) {
			return nil
		}
		last = snap.State

		select {
		case <-ctx.Done():
			return fmt.Errorf("await %s=%s: timed out after %s in state %s", a.Engine, a.State, timeout, last)
		case <-e.Done():
			return fmt.Errorf("await %s=%s: engine stopped in state %s", a.Engine, a.State, last)
		case <-tick.C:
		}
	}
}

// settle waits until every inbox has been empty for a few consecutive polls,
// so that cross-engine emissions land before Exit does.
func (h *Harness) settle() {
	deadline := time.Now().Add(settleTimeout)
	quiet := 0
	for quiet < 3 && time.Now().Before(deadline) {
		busy := false
		for _, e := range h.rt.Engines() {
			if e.QueueLen() > 0 {
				busy = true
				break
			}
		}
		if busy {
			quiet = 0
		} else {
			quiet++
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (h *Harness) collect(result *Result) {
	names := make([]string, 0)
	for _, e := range h.rt.Engines() {
		names = append(names, e.Name())
		if snap, err := e.Snapshot(); err == nil {
			result.States[e.Name()] = snap.State
		}
	}
	sort.Strings(names)

	byEngine := make(map[string][]TraceEvent, len(names))
	for _, rec := range h.collector.Transitions("") {
		byEngine[rec.Engine] = append(byEngine[rec.Engine], transitionEvent(rec))
	}
	for _, rec := range h.collector.Discards() {
		byEngine[rec.Engine] = append(byEngine[rec.Engine], discardEvent(rec))
	}
	for _, rec := range h.collector.Displays() {
		byEngine[rec.Engine] = append(byEngine[rec.Engine], displayEvent(rec))
	}

	for _, name := range names {
		result.Trace = append(result.Trace, byEngine[name]...)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
