package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fsmrt/internal/engine"
	"github.com/roach88/fsmrt/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // "" lists runs; "latest" picks the newest
	Engine   string // optional filter
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID        string   `json:"id"`
	StartedAt string   `json:"started_at"`
	Source    string   `json:"source"`
	Engines   []string `json:"engines"`
}

// TraceEntry is one journaled transition.
type TraceEntry struct {
	Time        string `json:"time"`
	Engine      string `json:"engine"`
	Seq         int64  `json:"seq"`
	From        string `json:"from"`
	Event       string `json:"event"`
	To          string `json:"to"`
	Description string `json:"description"`
}

// DisplayEntry is one journaled Display record.
type DisplayEntry struct {
	Engine    string `json:"engine"`
	Seq       int64  `json:"seq"`
	State     string `json:"state"`
	LastEvent string `json:"last_event,omitempty"`
}

// TraceResult is the output of trace for one run.
type TraceResult struct {
	Run         RunSummary        `json:"run"`
	Transitions []TraceEntry      `json:"transitions"`
	Displays    []DisplayEntry    `json:"displays"`
	Final       map[string]string `json:"final_states"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled transitions of a run",
		Long: `Read the journal written by "fsmrt run --journal".

Without --run, lists the recorded runs. With --run, prints the run's
transitions in time order, its Display records, and the last state each
engine reached. --run latest selects the most recent run.

Examples:
  fsmrt trace --db ./fsmrt.db
  fsmrt trace --db ./fsmrt.db --run latest
  fsmrt trace --db ./fsmrt.db --run 0192f0c4-... --engine crosswalk --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show, or \"latest\"")
	cmd.Flags().StringVar(&opts.Engine, "engine", "", "only show this engine")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Open would create an empty journal; a missing file is a usage error.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	st, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.RunID == "" {
		return outputRuns(cmd, opts, runs)
	}

	run, ok := findRun(runs, opts.RunID)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}

	transitions, err := st.ReadTransitions(ctx, run.ID, opts.Engine)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transitions", err)
	}
	displays, err := st.ReadDisplays(ctx, run.ID, opts.Engine)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read displays", err)
	}

	result := buildTraceResult(run, transitions, displays)
	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result)
}

// findRun resolves id, or "latest", against runs (oldest first).
func findRun(runs []journal.Run, id string) (journal.Run, bool) {
	if id == "latest" {
		if len(runs) == 0 {
			return journal.Run{}, false
		}
		return runs[len(runs)-1], true
	}
	for _, r := range runs {
		if r.ID == id {
			return r, true
		}
	}
	return journal.Run{}, false
}

func summarize(r journal.Run) RunSummary {
	engines := r.Engines
	if engines == nil {
		engines = []string{}
	}
	return RunSummary{
		ID:        r.ID,
		StartedAt: r.StartedAt.UTC().Format(time.RFC3339Nano),
		Source:    r.Source,
		Engines:   engines,
	}
}

// buildTraceResult converts journal records to output entries. The last
// transition per engine gives its final state.
func buildTraceResult(run journal.Run, transitions []engine.TransitionRecord, displays []engine.DisplayRecord) TraceResult {
	result := TraceResult{
		Run:         summarize(run),
		Transitions: make([]TraceEntry, 0, len(transitions)),
		Displays:    make([]DisplayEntry, 0, len(displays)),
		Final:       make(map[string]string),
	}

	for _, t := range transitions {
		result.Transitions = append(result.Transitions, TraceEntry{
			Time:        t.Stamp(),
			Engine:      t.Engine,
			Seq:         t.Seq,
			From:        string(t.From),
			Event:       string(t.Event),
			To:          string(t.To),
			Description: t.Description,
		})
		result.Final[t.Engine] = string(t.To)
	}
	for _, d := range displays {
		result.Displays = append(result.Displays, DisplayEntry{
			Engine:    d.Engine,
			Seq:       d.Seq,
			State:     string(d.State),
			LastEvent: string(d.LastEvent),
		})
	}
	return result
}

func outputRuns(cmd *cobra.Command, opts *TraceOptions, runs []journal.Run) error {
	summaries := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		summaries = append(summaries, summarize(r))
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, summaries)
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	fmt.Fprintf(w, "Runs (%d):\n", len(summaries))
	for _, s := range summaries {
		fmt.Fprintf(w, "  %s  %s  %s  [%s]\n", s.ID, s.StartedAt, s.Source, strings.Join(s.Engines, ", "))
	}
	return nil
}

func outputTraceJSON(cmd *cobra.Command, data any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: data})
}

func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Started: %s\n", result.Run.StartedAt)
	fmt.Fprintf(w, "Source: %s\n", result.Run.Source)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Transitions (%d):\n", len(result.Transitions))
	for _, t := range result.Transitions {
		fmt.Fprintf(w, "  %s %s: %s -%s-> %s | %s\n", t.Time, t.Engine, t.From, t.Event, t.To, t.Description)
	}

	if len(result.Displays) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Displays (%d):\n", len(result.Displays))
		for _, d := range result.Displays {
			last := d.LastEvent
			if last == "" {
				last = "-"
			}
			fmt.Fprintf(w, "  %s: state=%s last_event=%s\n", d.Engine, d.State, last)
		}
	}

	if len(result.Final) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Final states:")
		for _, name := range result.Run.Engines {
			if state, ok := result.Final[name]; ok {
				fmt.Fprintf(w, "  %s: %s\n", name, state)
			}
		}
	}
	return nil
}
