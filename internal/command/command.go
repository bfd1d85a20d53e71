// Package command turns line-oriented operator input into addressed events.
//
// The grammar is four single-letter tokens, matched case-insensitively after
// NFKC normalization and Unicode case folding:
//
//	S  Start
//	B  Button
//	D  Display
//	X  Exit
//
// Anything else is discarded. Display and Exit go to every registered inbox;
// Start and Button go to the targets listed in Routes.
package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/fsmrt/internal/fsm"
	"github.com/roach88/fsmrt/internal/router"
)

var tokens = map[string]fsm.Event{
	"s": fsm.EventStart,
	"b": fsm.EventButton,
	"d": fsm.EventDisplay,
	"x": fsm.EventExit,
}

// ParseToken maps a raw token to its event.
func ParseToken(tok string) (fsm.Event, bool) {
	// A Caser is stateful; build one per call.
	key := cases.Fold().String(norm.NFKC.String(strings.TrimSpace(tok)))
	ev, ok := tokens[key]
	return ev, ok
}

// Routes lists, per non-control event, the engines that receive it.
type Routes map[fsm.Event][]string

// Sender is the subset of the router the command source needs.
type Sender interface {
	Route(target string, ev fsm.Event) router.Delivery
	Broadcast(ev fsm.Event) map[string]router.Delivery
}

// Source reads commands and routes the events they name.
type Source struct {
	sender Sender
	routes Routes
	logger *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the source's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource creates a command source.
func NewSource(sender Sender, routes Routes, opts ...Option) *Source {
	s := &Source{sender: sender, routes: routes, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch parses one token and routes its event. It returns the event and
// whether the token was recognized.
func (s *Source) Dispatch(tok string) (fsm.Event, bool) {
	ev, ok := ParseToken(tok)
	if !ok {
		s.logger.Debug("unrecognized command discarded", "token", tok)
		return "", false
	}

	if ev.IsControl() {
		s.sender.Broadcast(ev)
		return ev, true
	}

	targets := s.routes[ev]
	if len(targets) == 0 {
		s.logger.Debug("command has no targets", "event", ev)
	}
	for _, target := range targets {
		s.sender.Route(target, ev)
	}
	return ev, true
}

// Run reads whitespace-separated tokens from r until an X token or end of
// input, dispatching each. Lines starting with # are comments and are only
// logged. Either way every inbox receives Exit before Run returns nil. A read error is returned without sending Exit, as is
// cancellation, which is only observed between lines.
func (s *Source) Run(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			s.logger.Info("comment", "text", strings.TrimSpace(line[1:]))
			continue
		}
		for _, tok := range strings.Fields(line) {
			if ev, _ := s.Dispatch(tok); ev == fsm.EventExit {
				return nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}

	s.logger.Info("command input ended, exiting")
	s.sender.Broadcast(fsm.EventExit)
	return nil
}
