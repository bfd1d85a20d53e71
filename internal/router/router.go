package router

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/fsmrt/internal/fsm"
)

var (
	// ErrSealed is returned by Register after Seal.
	ErrSealed = errors.New("router is sealed")
	// ErrDuplicateName is returned when a name is registered twice.
	ErrDuplicateName = errors.New("duplicate inbox name")
)

// Inbox is anything that accepts events. Enqueue returns false once the
// owner has stopped.
type Inbox interface {
	Enqueue(ev fsm.Event) bool
}

// Delivery is the outcome of a single send.
type Delivery int

const (
	Delivered Delivery = iota
	UnknownTarget
	Disconnected
)

func (d Delivery) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case UnknownTarget:
		return "unknown_target"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("delivery(%d)", int(d))
	}
}

// Router is the name → inbox registry.
type Router struct {
	mu     sync.RWMutex
	inbox  map[string]Inbox
	order  []string
	sealed bool
	logger *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// New creates an empty, unsealed router.
func New(opts ...Option) *Router {
	r := &Router{
		inbox:  make(map[string]Inbox),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds inbox under name.
func (r *Router) Register(name string, inbox Inbox) error {
	if name == "" {
		return errors.New("inbox name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %q: %w", name, ErrSealed)
	}
	if _, exists := r.inbox[name]; exists {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateName)
	}

	r.inbox[name] = inbox
	r.order = append(r.order, name)
	return nil
}

// Seal freezes the name table.
func (r *Router) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Route sends ev to the inbox registered under target.
func (r *Router) Route(target string, ev fsm.Event) Delivery {
	r.mu.RLock()
	inbox, ok := r.inbox[target]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("route: unknown target", "target", target, "event", ev)
		return UnknownTarget
	}
	if !inbox.Enqueue(ev) {
		r.logger.Debug("route: target disconnected", "target", target, "event", ev)
		return Disconnected
	}
	return Delivered
}

// Broadcast sends ev to every inbox in registration order and returns the
// per-name outcome.
func (r *Router) Broadcast(ev fsm.Event) map[string]Delivery {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.RUnlock()

	out := make(map[string]Delivery, len(names))
	for _, name := range names {
		out[name] = r.Route(name, ev)
	}
	return out
}

// Names returns the registered names in registration order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Has reports whether name is registered.
func (r *Router) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.inbox[name]
	return ok
}

// SortedNames returns the registered names in lexical order.
func (r *Router) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
