// Package manager drives the fabric lifecycle using the
// fetch/compute/execute pattern.
//
// # Lifecycle
//
// A switch registers with its description. It is configured, placed in
// its tree slot and the tree is checked for completion. An incomplete
// tree is a normal state: registration succeeds and the switch waits
// for its peers. Once the tree is complete its topology is resolved and
// the tree is activated.
//
// Activation is all or nothing. Every step that succeeds pushes its
// inverse onto an undo stack; when a step fails the stack is unwound,
// the switch is removed from its tree and the caller sees the error.
// The one tolerated failure is creating a user port's interface: the
// port is left without one and activation continues.
//
// A switch whose uplink device has not appeared yet is removed from its
// tree and the caller is told to retry with dsa.ErrNotYetAvailable.
// The retry policy belongs to the caller.
//
// Unregistering a switch deactivates its whole tree first. The
// remaining members wait for the tree to complete again.
//
// # Locking
//
// Every entry point runs under the fabric writer lock, so the logic
// below is single threaded. The only tree state read without the lock
// is the hook published on the uplink device.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/compute"
	"github.com/frobware/go-dsa/interpreter"
	"github.com/frobware/go-dsa/lock"
)

// Manager orchestrates switch registration and tree activation.
type Manager struct {
	lock     *lock.Writer
	registry *dsa.Registry
	host     interpreter.HostOperations
	taggers  interpreter.TaggerResolver
	executor interpreter.ActionExecutor
	journal  interpreter.Journal
	observer Observer
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithJournal records lifecycle events in j.
func WithJournal(j interpreter.Journal) Option {
	return func(m *Manager) { m.journal = j }
}

// WithObserver reports lifecycle outcomes to o.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithLock uses w instead of a private process-local writer lock.
func WithLock(w *lock.Writer) Option {
	return func(m *Manager) { m.lock = w }
}

// New creates a new Manager.
func New(host interpreter.HostOperations, taggers interpreter.TaggerResolver, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		registry: dsa.NewRegistry(),
		host:     host,
		taggers:  taggers,
		executor: interpreter.NewExecutor(host, logger),
		observer: nopObserver{},
		logger:   WithOpIDHandler(logger).With("component", "manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.lock == nil {
		m.lock = lock.New("")
	}
	return m
}

// Register binds sw into the tree its description names and activates
// the tree if sw completes it.
//
// On success sw is a member of its tree, whether or not the tree is
// active yet. On failure sw is not a member of any tree. Failures are
// a *dsa.ValidationError, dsa.ErrBusy, dsa.ErrDisjointTree,
// dsa.ErrNotYetAvailable (retry later), dsa.ErrMissingUplink,
// dsa.ErrNoTagger or a *dsa.ActivationError.
func (m *Manager) Register(ctx context.Context, sw *dsa.Switch, cfg dsa.SwitchConfig) error {
	if AttemptFromContext(ctx) == "" {
		ctx = ContextWithAttempt(ctx, uuid.NewString())
	}
	return m.lock.Run(ctx, func(ctx context.Context, scope lock.WriterScope) error {
		outcome, err := m.register(ctx, scope, sw, cfg)
		m.observer.Registration(outcome)
		return err
	})
}

// register returns the journal kind describing the outcome alongside
// the error, since a nil error covers both pending and activated.
func (m *Manager) register(ctx context.Context, _ lock.WriterScope, sw *dsa.Switch, cfg dsa.SwitchConfig) (interpreter.EventKind, error) {
	if sw.Tree() != nil {
		return interpreter.EventRejected, fmt.Errorf("register %s: %w", sw, dsa.ErrAlreadyRegistered)
	}

	membership, err := sw.Configure(cfg)
	if err != nil {
		m.record(ctx, interpreter.EventRejected, membership.Tree, membership.Index, sw.Name, err.Error())
		return interpreter.EventRejected, fmt.Errorf("register %s: %w", sw.Name, err)
	}

	t := m.registry.Get(membership.Tree)
	defer m.registry.Put(t)

	if t.Switch(membership.Index) != nil {
		m.record(ctx, interpreter.EventRejected, t.ID, membership.Index, sw.Name, dsa.ErrBusy.Error())
		return interpreter.EventRejected, fmt.Errorf("register %s at %s: %w", sw.Name, membership, dsa.ErrBusy)
	}
	if t.Applied() {
		m.logger.WarnContext(ctx, "switch claims a slot in an active tree", "switch", sw.Name, "member", membership)
		m.record(ctx, interpreter.EventRejected, t.ID, membership.Index, sw.Name, dsa.ErrDisjointTree.Error())
		return interpreter.EventRejected, fmt.Errorf("register %s at %s: %w", sw.Name, membership, dsa.ErrDisjointTree)
	}

	sw.ResetRoutes()
	sw.LinkPorts = 0
	if err := m.registry.AddMember(t, sw, membership.Index); err != nil {
		return interpreter.EventRejected, fmt.Errorf("register %s: %w", sw.Name, err)
	}
	m.logger.DebugContext(ctx, "switch added", "switch", sw, "ports", sw.NumPorts(), "configured", sw.ConfiguredPorts)

	res, err := compute.Completion(t)
	if err != nil {
		m.removeMember(t, sw)
		m.record(ctx, interpreter.EventRejected, t.ID, membership.Index, sw.Name, err.Error())
		return interpreter.EventRejected, fmt.Errorf("register %s: %w", sw.Name, err)
	}
	if !res.Complete {
		m.logger.InfoContext(ctx, "tree incomplete, waiting for peers",
			"switch", sw, "members", t.Members(), "missing", res.Missing)
		m.record(ctx, interpreter.EventPending, t.ID, membership.Index, sw.Name, fmt.Sprintf("missing %v", res.Missing))
		return interpreter.EventPending, nil
	}
	installRoutes(t, res)

	if err := m.resolve(ctx, t); err != nil {
		m.removeMember(t, sw)
		kind := interpreter.EventRejected
		if dsa.IsRetryable(err) {
			kind = interpreter.EventDeferred
			m.logger.InfoContext(ctx, "uplink not available yet, deferring", "switch", sw.Name, "error", err)
		}
		m.record(ctx, kind, t.ID, membership.Index, sw.Name, err.Error())
		return kind, fmt.Errorf("register %s: %w", sw.Name, err)
	}

	if err := m.activate(ctx, t); err != nil {
		m.removeMember(t, sw)
		m.record(ctx, interpreter.EventRolledBack, t.ID, membership.Index, sw.Name, err.Error())
		return interpreter.EventRolledBack, fmt.Errorf("register %s: %w", sw.Name, err)
	}

	m.record(ctx, interpreter.EventRegistered, t.ID, membership.Index, sw.Name, "")
	m.record(ctx, interpreter.EventActivated, t.ID, membership.Index, sw.Name,
		fmt.Sprintf("master %s tagging %s", t.Master, t.Tagger.Protocol))
	return interpreter.EventActivated, nil
}

// Unregister deactivates sw's tree and removes sw from it. Teardown
// failures are logged and journaled; the switch is removed regardless.
func (m *Manager) Unregister(ctx context.Context, sw *dsa.Switch) error {
	return m.lock.Run(ctx, func(ctx context.Context, scope lock.WriterScope) error {
		return m.unregister(ctx, scope, sw)
	})
}

func (m *Manager) unregister(ctx context.Context, _ lock.WriterScope, sw *dsa.Switch) error {
	if sw.Tree() == nil {
		return fmt.Errorf("unregister %s: %w", sw.Name, dsa.ErrNotRegistered)
	}

	// Hold the tree across the teardown so the last member leaving
	// cannot free it underneath us.
	t := m.registry.Get(sw.Tree().ID)
	defer m.registry.Put(t)

	index := sw.Index()
	if t.Applied() {
		detail := ""
		if err := m.deactivate(ctx, t); err != nil {
			m.logger.ErrorContext(ctx, "tree teardown incomplete", "tree", t.ID, "error", err)
			detail = err.Error()
		}
		m.record(ctx, interpreter.EventDeactivated, t.ID, index, sw.Name, detail)
	}

	m.removeMember(t, sw)
	m.logger.InfoContext(ctx, "switch removed", "switch", sw.Name, "tree", t.ID, "remaining", t.Members())
	m.record(ctx, interpreter.EventUnregistered, t.ID, index, sw.Name, "")
	return nil
}

// Notify delivers n to every switch of an active tree that subscribed
// to notifications.
func (m *Manager) Notify(ctx context.Context, id dsa.TreeID, n dsa.Notification) error {
	return m.lock.Run(ctx, func(ctx context.Context, _ lock.WriterScope) error {
		t, ok := m.registry.Lookup(id)
		if !ok {
			return fmt.Errorf("tree %d: %w", id, ErrTreeNotFound)
		}
		if !t.Applied() {
			return fmt.Errorf("tree %d: %w", id, ErrTreeNotActive)
		}
		return t.Notify(ctx, n)
	})
}

var (
	// ErrTreeNotFound is returned when querying a tree no switch
	// refers to.
	ErrTreeNotFound = errors.New("tree not found")

	// ErrTreeNotActive is returned when notifying a tree that has not
	// been activated.
	ErrTreeNotActive = errors.New("tree not active")
)

// installRoutes copies a complete result into the members.
func installRoutes(t *dsa.Tree, res compute.CompletionResult) {
	for i, sw := range t.Switches() {
		sw.RTable = res.Routes[i]
		sw.LinkPorts = res.LinkPorts[i]
	}
}

// removeMember takes sw out of t and forgets everything derived from
// the tree having been complete.
func (m *Manager) removeMember(t *dsa.Tree, sw *dsa.Switch) {
	m.registry.RemoveMember(t, sw.Index())
	sw.ResetRoutes()
	sw.LinkPorts = 0
	sw.Master = nil
	for _, peer := range t.Switches() {
		peer.ResetRoutes()
		peer.LinkPorts = 0
		peer.Master = nil
	}
	t.ResetTopology()
}

// record appends to the journal, if any. A journal failure never fails
// the lifecycle operation.
func (m *Manager) record(ctx context.Context, kind interpreter.EventKind, tree dsa.TreeID, member uint32, sw, detail string) {
	if m.journal == nil {
		return
	}
	err := m.journal.Record(ctx, interpreter.JournalEntry{
		Time:    time.Now(),
		Kind:    kind,
		Tree:    tree,
		Member:  member,
		Switch:  sw,
		Attempt: AttemptFromContext(ctx),
		OpID:    OpIDFromContext(ctx),
		Detail:  detail,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "journal write failed", "kind", kind, "error", err)
	}
}
