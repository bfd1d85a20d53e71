package timer

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/fsmrt/internal/fsm"
	"github.com/roach88/fsmrt/internal/router"
)

// Scheduler is the one-shot half of the timer service.
type Scheduler struct {
	sender  Sender
	logger  *slog.Logger
	pending atomic.Int64
	fired   atomic.Int64
}

// NewScheduler creates a scheduler that routes through sender.
func NewScheduler(sender Sender, opts ...Option) *Scheduler {
	o := buildOptions(opts)
	return &Scheduler{sender: sender, logger: o.logger}
}

// After routes ev to target once, after delay. It returns immediately.
func (s *Scheduler) After(delay time.Duration, target string, ev fsm.Event) {
	s.pending.Add(1)
	s.logger.Debug("one-shot scheduled", "target", target, "event", ev, "delay", delay)

	time.AfterFunc(delay, func() {
		defer s.pending.Add(-1)
		s.fired.Add(1)

		if d := s.sender.Route(target, ev); d != router.Delivered {
			s.logger.Debug("one-shot undeliverable", "target", target, "event", ev, "outcome", d)
		}
	})
}

// Pending returns the number of one-shots whose delay has not yet elapsed.
func (s *Scheduler) Pending() int64 {
	return s.pending.Load()
}

// Fired returns the number of one-shots that have attempted delivery.
func (s *Scheduler) Fired() int64 {
	return s.fired.Load()
}
