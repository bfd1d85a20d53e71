package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/fsmrt/internal/engine"
)

// Run describes one process run.
type Run struct {
	ID        string
	StartedAt time.Time
	Source    string
	Engines   []string
}

// BeginRun records the start of a run. Writing the same ID twice is a no-op.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, config_source, engines)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Source,
		strings.Join(run.Engines, ","),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// WriteTransition appends a transition record to runID.
// Duplicate (engine, seq) pairs are silently ignored.
func (s *Store) WriteTransition(ctx context.Context, runID string, r engine.TransitionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions
		(run_id, engine, seq, elapsed_ms, from_state, event, to_state, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		r.Engine,
		r.Seq,
		r.Elapsed.Milliseconds(),
		string(r.From),
		string(r.Event),
		string(r.To),
		r.Description,
	)
	if err != nil {
		return fmt.Errorf("write transition: %w", err)
	}
	return nil
}

// WriteDisplay appends a display record to runID.
func (s *Store) WriteDisplay(ctx context.Context, runID string, r engine.DisplayRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO displays (run_id, engine, seq, state, last_event)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		r.Engine,
		r.Seq,
		string(r.State),
		string(r.LastEvent),
	)
	if err != nil {
		return fmt.Errorf("write display: %w", err)
	}
	return nil
}
