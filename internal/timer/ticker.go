package timer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/fsmrt/internal/fsm"
	"github.com/roach88/fsmrt/internal/router"
)

// Sender is the router's send contract.
type Sender interface {
	Route(target string, ev fsm.Event) router.Delivery
}

// Ticker is the periodic half of the timer service.
type Ticker struct {
	sender   Sender
	target   string
	event    fsm.Event
	interval time.Duration
	logger   *slog.Logger

	ticks atomic.Int64

	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
}

// Option configures a Ticker or a Scheduler.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewTicker creates a ticker that routes event to target every interval.
// interval must be positive.
func NewTicker(sender Sender, target string, event fsm.Event, interval time.Duration, opts ...Option) *Ticker {
	o := buildOptions(opts)
	return &Ticker{
		sender:   sender,
		target:   target,
		event:    event,
		interval: interval,
		logger:   o.logger,
		stop:     make(chan struct{}),
	}
}

// Enqueue lets the ticker sit in the router's registry. Exit stops it and
// Display logs its tick count; anything else is ignored. Returns false once
// the ticker has stopped.
func (t *Ticker) Enqueue(ev fsm.Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return false
	}

	switch ev {
	case fsm.EventExit:
		t.stopLocked()
	case fsm.EventDisplay:
		t.logger.Info("timer", "target", t.target, "event", t.event, "interval", t.interval, "ticks", t.ticks.Load())
	}
	return true
}

func (t *Ticker) stopLocked() {
	if !t.stopped {
		t.stopped = true
		close(t.stop)
	}
}

// Ticks returns how many ticks have been delivered.
func (t *Ticker) Ticks() int64 {
	return t.ticks.Load()
}

// Interval returns the tick period.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Target returns the engine the ticker feeds.
func (t *Ticker) Target() string {
	return t.target
}

// Run emits ticks until Exit is received, the target disconnects, or ctx is
// cancelled. The first two return nil.
func (t *Ticker) Run(ctx context.Context) error {
	defer func() {
		t.mu.Lock()
		t.stopLocked()
		t.mu.Unlock()
	}()

	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	t.logger.Info("timer starting", "target", t.target, "event", t.event, "interval", t.interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-t.stop:
			t.logger.Info("timer stopping: exit event", "target", t.target)
			return nil

		case <-tk.C:
			switch t.sender.Route(t.target, t.event) {
			case router.Delivered:
				n := t.ticks.Add(1)
				t.logger.Debug("timer expired", "target", t.target, "event", t.event, "tick", n)
			case router.Disconnected:
				t.logger.Info("timer stopping: target disconnected", "target", t.target)
				return nil
			case router.UnknownTarget:
				t.logger.Debug("timer target not registered", "target", t.target)
			}
		}
	}
}
