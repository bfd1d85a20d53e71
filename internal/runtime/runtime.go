package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/fsmrt/internal/config"
	"github.com/roach88/fsmrt/internal/engine"
	"github.com/roach88/fsmrt/internal/fsm"
	"github.com/roach88/fsmrt/internal/router"
	"github.com/roach88/fsmrt/internal/timer"
)

// ErrAlreadyStarted is returned by Start on its second call.
var ErrAlreadyStarted = errors.New("runtime already started")

// Runtime is a set of engines plus the router and timers they share.
type Runtime struct {
	cfg    *config.Config
	runID  string
	logger *slog.Logger
	epoch  time.Time

	router    *router.Router
	scheduler *timer.Scheduler
	ticker    *timer.Ticker
	engines   []*engine.Engine
	byName    map[string]*engine.Engine

	mu      sync.Mutex
	started bool
	fatal   error

	wg   sync.WaitGroup
	done chan struct{}
}

// Option configures a Runtime.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	observers []engine.Observer
	metrics   *engine.Metrics
	tick      time.Duration
	noTimer   bool
	runID     string
	now       func() time.Time
}

// WithLogger sets the logger handed to every component. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver adds an observer to every engine.
func WithObserver(obs engine.Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, obs)
	}
}

// WithMetrics exports engine and scheduler activity through m.
func WithMetrics(m *engine.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTickInterval overrides the configured timer interval.
// Zero keeps the configured value.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) {
		o.tick = d
	}
}

// WithoutTimer leaves the periodic ticker out even if one is configured.
func WithoutTimer() Option {
	return func(o *options) {
		o.noTimer = true
	}
}

// WithRunID fixes the run identifier. Default: a fresh UUIDv7.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}

// WithNow replaces the wall clock used for transition timestamps.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New builds every component described by cfg. Nothing runs until Start.
//
// cfg must pass validation; warnings are logged and otherwise ignored.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	var verrs []error
	for _, v := range cfg.Validate() {
		if v.Warning {
			o.logger.Warn("config warning", "field", v.Field, "code", v.Code, "message", v.Message)
			continue
		}
		verrs = append(verrs, v)
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(verrs...))
	}

	runID := o.runID
	if runID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate run id: %w", err)
		}
		runID = id.String()
	}

	r := &Runtime{
		cfg:    cfg,
		runID:  runID,
		logger: o.logger.With("run", runID),
		epoch:  o.now(),
		byName: make(map[string]*engine.Engine, len(cfg.Engines)),
		done:   make(chan struct{}),
	}

	r.router = router.New(router.WithLogger(r.logger))
	r.scheduler = timer.NewScheduler(r.router, timer.WithLogger(r.logger))
	emitter := &dispatcher{router: r.router, scheduler: r.scheduler}

	for _, def := range cfg.Engines {
		engOpts := []engine.Option{
			engine.WithLogger(r.logger),
			engine.WithEmitter(emitter),
			engine.WithEpoch(r.epoch),
			engine.WithNow(o.now),
			engine.WithObserver(engine.LogObserver{Logger: r.logger}),
		}
		for _, obs := range o.observers {
			engOpts = append(engOpts, engine.WithObserver(obs))
		}
		if o.metrics != nil {
			engOpts = append(engOpts, engine.WithMetrics(o.metrics))
		}

		e := engine.New(def.Name, fsm.NewTable(def.Transitions), engOpts...)
		if err := r.router.Register(def.Name, e); err != nil {
			return nil, err
		}
		r.engines = append(r.engines, e)
		r.byName[def.Name] = e
	}

	if cfg.Timer != nil && !o.noTimer {
		interval := cfg.Timer.Interval
		if o.tick > 0 {
			interval = o.tick
		}
		r.ticker = timer.NewTicker(r.router, cfg.Timer.Target, cfg.Timer.Event, interval, timer.WithLogger(r.logger))
		if err := r.router.Register(cfg.Timer.Name, r.ticker); err != nil {
			return nil, err
		}
	}

	if o.metrics != nil {
		o.metrics.TrackOneShots(r.scheduler.Pending)
	}

	r.router.Seal()
	return r, nil
}

// Start launches every engine loop and the ticker.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	r.logger.Info("runtime starting", "engines", r.router.Names())

	for _, e := range r.engines {
		r.wg.Add(1)
		go func(e *engine.Engine) {
			defer r.wg.Done()
			r.finished(e.Name(), e.Run(ctx))
		}(e)
	}

	if r.ticker != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.finished("timer", r.ticker.Run(ctx))
		}()
	}

	go func() {
		r.wg.Wait()
		close(r.done)
	}()
	return nil
}

// finished records how a loop ended. The first fatal error stops everything.
func (r *Runtime) finished(name string, err error) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.logger.Debug("loop ended", "name", name)
		return
	}

	r.mu.Lock()
	first := r.fatal == nil
	if first {
		r.fatal = err
	}
	r.mu.Unlock()

	r.logger.Error("fatal engine condition", "name", name, "error", err)
	if first {
		r.router.Broadcast(fsm.EventExit)
	}
}

// Send routes ev to target.
func (r *Runtime) Send(target string, ev fsm.Event) router.Delivery {
	return r.router.Route(target, ev)
}

// Broadcast sends ev to every engine and the ticker.
func (r *Runtime) Broadcast(ev fsm.Event) map[string]router.Delivery {
	return r.router.Broadcast(ev)
}

// Shutdown asks every loop to end by broadcasting Exit.
func (r *Runtime) Shutdown() {
	r.logger.Info("runtime shutting down")
	r.router.Broadcast(fsm.EventExit)
}

// Done is closed once every loop has ended.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until every loop has ended and returns the first fatal error.
// Must be called after Start.
func (r *Runtime) Wait() error {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatal
}

// RunID returns the run identifier.
func (r *Runtime) RunID() string {
	return r.runID
}

// Epoch returns the instant transition timestamps are measured from.
func (r *Runtime) Epoch() time.Time {
	return r.epoch
}

// Config returns the configuration the runtime was built from.
func (r *Runtime) Config() *config.Config {
	return r.cfg
}

// Router returns the shared router.
func (r *Runtime) Router() *router.Router {
	return r.router
}

// Scheduler returns the one-shot scheduler.
func (r *Runtime) Scheduler() *timer.Scheduler {
	return r.scheduler
}

// Ticker returns the periodic ticker, or nil if there is none.
func (r *Runtime) Ticker() *timer.Ticker {
	return r.ticker
}

// Engine returns the engine called name.
func (r *Runtime) Engine(name string) (*engine.Engine, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// Engines returns the engines in configuration order.
func (r *Runtime) Engines() []*engine.Engine {
	out := make([]*engine.Engine, len(r.engines))
	copy(out, r.engines)
	return out
}

// Snapshots returns every engine's snapshot in configuration order.
// An engine that is poisoned contributes its error instead.
func (r *Runtime) Snapshots() ([]engine.Snapshot, error) {
	var (
		out  []engine.Snapshot
		errs []error
	)
	for _, e := range r.engines {
		s, err := e.Snapshot()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, s)
	}
	return out, errors.Join(errs...)
}

// dispatcher is the Emitter handed to every engine's actions.
type dispatcher struct {
	router    *router.Router
	scheduler *timer.Scheduler
}

func (d *dispatcher) Emit(target string, ev fsm.Event) {
	d.router.Route(target, ev)
}

func (d *dispatcher) EmitAfter(delay time.Duration, target string, ev fsm.Event) {
	d.scheduler.After(delay, target, ev)
}
