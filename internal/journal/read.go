package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/fsmrt/internal/engine"
	"github.com/roach88/fsmrt/internal/fsm"
)

// ListRuns returns every recorded run, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, config_source, engines
		FROM runs
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run     Run
			started string
			engines string
		)
		if err := rows.Scan(&run.ID, &started, &run.Source, &engines); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", run.ID, err)
		}
		if engines != "" {
			run.Engines = strings.Split(engines, ",")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recent run, or false if there is none.
func (s *Store) LatestRun(ctx context.Context) (Run, bool, error) {
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return Run{}, false, err
	}
	if len(runs) == 0 {
		return Run{}, false, nil
	}
	return runs[len(runs)-1], true, nil
}

// ReadTransitions returns the transitions of runID, restricted to
// engineName unless it is empty.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadTransitions(ctx context.Context, runID, engineName string) ([]engine.TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT engine, seq, elapsed_ms, from_state, event, to_state, description
		FROM transitions
		WHERE run_id = ? AND (? = '' OR engine = ?)
		ORDER BY elapsed_ms ASC, engine COLLATE BINARY ASC, seq ASC
	`, runID, engineName, engineName)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	out := []engine.TransitionRecord{}
	for rows.Next() {
		var (
			r               engine.TransitionRecord
			elapsedMS       int64
			from, event, to string
		)
		if err := rows.Scan(&r.Engine, &r.Seq, &elapsedMS, &from, &event, &to, &r.Description); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		r.From, r.Event, r.To = fsm.State(from), fsm.Event(event), fsm.State(to)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

// ReadDisplays returns the display records of runID, restricted to
// engineName unless it is empty.
func (s *Store) ReadDisplays(ctx context.Context, runID, engineName string) ([]engine.DisplayRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT engine, seq, state, last_event
		FROM displays
		WHERE run_id = ? AND (? = '' OR engine = ?)
		ORDER BY engine COLLATE BINARY ASC, seq ASC
	`, runID, engineName, engineName)
	if err != nil {
		return nil, fmt.Errorf("query displays: %w", err)
	}
	defer rows.Close()

	out := []engine.DisplayRecord{}
	for rows.Next() {
		var (
			r                engine.DisplayRecord
			state, lastEvent string
		)
		if err := rows.Scan(&r.Engine, &r.Seq, &state, &lastEvent); err != nil {
			return nil, fmt.Errorf("scan display: %w", err)
		}
		r.State, r.LastEvent = fsm.State(state), fsm.Event(lastEvent)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate displays: %w", err)
	}
	return out, nil
}
