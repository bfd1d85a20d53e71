package journal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/fsmrt/internal/engine"
)

// DefaultRecorderBuffer is the number of records a Recorder holds before it
// starts dropping.
const DefaultRecorderBuffer = 1024

// Recorder is an engine.Observer that writes records to a Store.
//
// Observers run while the engine holds its state lock, so the Recorder only
// hands records to a writer goroutine. When that goroutine falls behind by
// more than the buffer, records are dropped and counted.
type Recorder struct {
	store  *Store
	runID  string
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan any
	done   chan struct{}

	dropped atomic.Int64
	err     error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*recorderConfig)

type recorderConfig struct {
	logger *slog.Logger
	buffer int
}

// WithRecorderLogger sets the logger. Default: slog.Default().
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(c *recorderConfig) {
		c.logger = logger
	}
}

// WithBuffer sets the queue size. Default: DefaultRecorderBuffer.
func WithBuffer(n int) RecorderOption {
	return func(c *recorderConfig) {
		c.buffer = n
	}
}

// NewRecorder starts a recorder writing into runID.
func NewRecorder(store *Store, runID string, opts ...RecorderOption) *Recorder {
	cfg := recorderConfig{logger: slog.Default(), buffer: DefaultRecorderBuffer}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Recorder{
		store:  store,
		runID:  runID,
		logger: cfg.logger,
		ch:     make(chan any, cfg.buffer),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	defer close(r.done)

	ctx := context.Background()
	for item := range r.ch {
		var err error
		switch rec := item.(type) {
		case engine.TransitionRecord:
			err = r.store.WriteTransition(ctx, r.runID, rec)
		case engine.DisplayRecord:
			err = r.store.WriteDisplay(ctx, r.runID, rec)
		}
		if err != nil {
			r.logger.Warn("journal write failed", "run", r.runID, "error", err)
			if r.err == nil {
				r.err = err
			}
		}
	}
}

func (r *Recorder) push(item any) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}
	select {
	case r.ch <- item:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn("journal behind, record dropped", "run", r.runID, "dropped", n)
	}
}

func (r *Recorder) Transitioned(rec engine.TransitionRecord) { r.push(rec) }

func (r *Recorder) Displayed(rec engine.DisplayRecord) { r.push(rec) }

// Discarded records nothing; discards are only logged.
func (r *Recorder) Discarded(engine.DiscardRecord) {}

// Dropped returns how many records were lost to a full buffer.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close flushes queued records and returns the first write error.
// Records arriving after Close are ignored.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()

	<-r.done
	if r.err != nil {
		return errors.Join(errors.New("journal recorder"), r.err)
	}
	return nil
}
