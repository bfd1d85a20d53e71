package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/fsmrt/internal/command"
	"github.com/roach88/fsmrt/internal/config"
	"github.com/roach88/fsmrt/internal/engine"
	"github.com/roach88/fsmrt/internal/journal"
	"github.com/roach88/fsmrt/internal/runtime"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Script      string
	Tick        time.Duration
	Journal     string
	MetricsAddr string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [config-dir]",
		Short: "Run the machines and read commands from stdin",
		Long: `Start one engine per configured machine, the periodic timer, and a
command reader on stdin.

Commands are single letters, one or more per line:
  S  start       B  button
  D  display     X  exit

End of input exits like X. SIGINT and SIGTERM also send Exit to every
engine. With --script the file's commands run first, then stdin is read;
lines starting with # are comments.

Every committed transition is printed as "seconds.millis engine: description".

Examples:
  fsmrt run
  fsmrt run ./machines --tick 500ms
  fsmrt run --script demo.txt --journal ./fsmrt.db < /dev/null
  fsmrt run --metrics-addr :9090 --verbose`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if len(args) == 1 {
				dir = args[0]
			}
			return runMachines(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Script, "script", "s", "", "read commands from this file before stdin")
	cmd.Flags().DurationVarP(&opts.Tick, "tick", "t", 0, "override the timer interval")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record transitions into this SQLite database")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runMachines(opts *RunOptions, dir string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Tick < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("tick must be positive, got %s", opts.Tick))
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	logger.Info("config loaded", "source", cfg.Source, "engines", cfg.EngineNames())

	id, err := uuid.NewV7()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to generate run id", err)
	}
	runID := id.String()

	rtOpts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithRunID(runID),
		runtime.WithObserver(&printer{out: formatter, discards: opts.Verbose}),
	}
	if opts.Tick > 0 {
		rtOpts = append(rtOpts, runtime.WithTickInterval(opts.Tick))
	}

	var (
		store    *journal.Store
		recorder *journal.Recorder
	)
	if opts.Journal != "" {
		store, err = journal.Open(opts.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()

		recorder = journal.NewRecorder(store, runID, journal.WithRecorderLogger(logger))
		defer func() {
			if closeErr := recorder.Close(); closeErr != nil {
				logger.Error("journal write failed", "error", closeErr)
			}
			if n := recorder.Dropped(); n > 0 {
				logger.Warn("journal dropped records", "count", n)
			}
		}()
		rtOpts = append(rtOpts, runtime.WithObserver(recorder))
	}

	var reg *prometheus.Registry
	if opts.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		rtOpts = append(rtOpts, runtime.WithMetrics(engine.NewMetrics(reg)))
	}

	rt, err := runtime.New(cfg, rtOpts...)
	if err != nil {
		_ = formatter.Error(config.ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid configuration", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if store != nil {
		err := store.BeginRun(ctx, journal.Run{
			ID:        runID,
			StartedAt: rt.Epoch(),
			Source:    cfg.Source,
			Engines:   cfg.EngineNames(),
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
	}

	input := cmd.InOrStdin()
	if opts.Script != "" {
		f, err := os.Open(opts.Script)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open script", err)
		}
		defer f.Close()
		// The newline keeps a final unterminated script line apart from stdin.
		input = io.MultiReader(f, strings.NewReader("\n"), input)
	}

	if !formatter.JSON() {
		fmt.Fprintf(formatter.GetErrWriter(), "fsmrt running %v (run %s). Commands: S start, B button, D display, X exit.\n",
			cfg.EngineNames(), runID)
	}

	if reg != nil {
		srv := newMetricsServer(opts.MetricsAddr, reg)
		go func() {
			logger.Info("serving metrics", "addr", opts.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := rt.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start runtime", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			rt.Shutdown()
		case <-rt.Done():
		}
	}()

	source := command.NewSource(rt.Router(), cfg.Commands, command.WithLogger(logger))
	go func() {
		if err := source.Run(ctx, input); err != nil && ctx.Err() == nil {
			logger.Error("command input failed", "error", err)
			rt.Shutdown()
		}
	}()

	if err := rt.Wait(); err != nil {
		code := "E_FATAL"
		var rtErr *engine.RuntimeError
		if errors.As(err, &rtErr) {
			code = string(rtErr.Code)
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "fatal engine condition", err)
	}

	logger.Info("runtime stopped", "run", runID)
	return nil
}

// newMetricsServer serves reg on /metrics.
func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// printer is the observer that renders records for the operator.
type printer struct {
	out      *OutputFormatter
	discards bool
}

// transitionLine is the JSON shape of a printed transition.
type transitionLine struct {
	Type        string `json:"type"`
	Time        string `json:"time"`
	Engine      string `json:"engine"`
	From        string `json:"from"`
	Event       string `json:"event"`
	To          string `json:"to"`
	Description string `json:"description"`
}

// displayLine is the JSON shape of a printed Display record.
type displayLine struct {
	Type      string `json:"type"`
	Engine    string `json:"engine"`
	State     string `json:"state"`
	LastEvent string `json:"last_event,omitempty"`
}

func (p *printer) Transitioned(r engine.TransitionRecord) {
	p.out.Record(transitionLine{
		Type:        "transition",
		Time:        r.Stamp(),
		Engine:      r.Engine,
		From:        string(r.From),
		Event:       string(r.Event),
		To:          string(r.To),
		Description: r.Description,
	}, fmt.Sprintf("%s %s: %s", r.Stamp(), r.Engine, r.Description))
}

func (p *printer) Displayed(r engine.DisplayRecord) {
	last := string(r.LastEvent)
	if last == "" {
		last = "-"
	}
	p.out.Record(displayLine{
		Type:      "display",
		Engine:    r.Engine,
		State:     string(r.State),
		LastEvent: string(r.LastEvent),
	}, fmt.Sprintf("%s: state=%s last_event=%s", r.Engine, r.State, last))
}

func (p *printer) Discarded(r engine.DiscardRecord) {
	if !p.discards {
		return
	}
	p.out.VerboseLog("%s: discarded %s in %s", r.Engine, r.Event, r.State)
}
