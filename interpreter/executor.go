package interpreter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/action"
	"github.com/frobware/go-dsa/logging"
)

// ActionExecutor executes reified actions.
type ActionExecutor interface {
	Execute(ctx context.Context, a action.Action) error
}

// executor interprets and executes actions.
type executor struct {
	host   HostOperations
	logger *slog.Logger
}

// NewExecutor creates a new action executor.
func NewExecutor(host HostOperations, logger *slog.Logger) ActionExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &executor{
		host:   host,
		logger: logger.With("component", "executor"),
	}
}

// Execute runs a single action. The caller must hold the fabric writer
// lock.
func (e *executor) Execute(ctx context.Context, a action.Action) error {
	e.logger.Log(ctx, logging.LevelTrace.ToSlog(), "execute", "action", a.Describe())

	switch a := a.(type) {
	case action.InitPorts:
		a.Switch.EnabledPorts = a.Switch.ConfiguredPorts
		a.Switch.PhyMask = a.Switch.EnabledPorts
		return nil

	case action.ResetPorts:
		a.Switch.EnabledPorts = 0
		a.Switch.PhyMask = 0
		return nil

	case action.SetupSwitch:
		return a.Switch.Ops.Setup(ctx, a.Switch)

	case action.TeardownSwitch:
		if td, ok := a.Switch.Ops.(dsa.Teardowner); ok {
			return td.Teardown(ctx, a.Switch)
		}
		return nil

	case action.RegisterNotifier:
		return treeOf(a.Switch).RegisterNotifier(a.Switch)

	case action.UnregisterNotifier:
		if t := a.Switch.Tree(); t != nil {
			t.UnregisterNotifier(a.Switch)
		}
		return nil

	case action.SetAddress:
		setter, ok := a.Switch.Ops.(dsa.AddressSetter)
		if !ok {
			return nil
		}
		return setter.SetAddress(ctx, a.Switch, a.Addr)

	case action.RegisterMDIOBus:
		bus, err := e.host.NewMDIOBus(ctx, a.Switch)
		if err != nil {
			return err
		}
		a.Switch.MDIOBus = bus
		a.Switch.OwnsMDIOBus = true
		return nil

	case action.UnregisterMDIOBus:
		if !a.Switch.OwnsMDIOBus || a.Switch.MDIOBus == nil {
			return nil
		}
		err := e.host.UnregisterMDIOBus(ctx, a.Switch, a.Switch.MDIOBus)
		a.Switch.MDIOBus = nil
		a.Switch.OwnsMDIOBus = false
		return err

	case action.SetupLinkPort:
		return e.host.SetupCascadePort(ctx, a.Switch, a.Port)

	case action.TeardownLinkPort:
		return e.host.TeardownCascadePort(ctx, a.Switch, a.Port)

	case action.SetupUplinkPort:
		if err := e.host.SetupCascadePort(ctx, a.Switch, a.Port); err != nil {
			return err
		}
		a.Switch.UplinkPorts.Set(a.Port)
		return nil

	case action.TeardownUplinkPort:
		a.Switch.UplinkPorts.Clear(a.Port)
		return e.host.TeardownCascadePort(ctx, a.Switch, a.Port)

	case action.CreateUserPort:
		iface, err := e.host.CreateUserPort(ctx, a.Switch, a.Port, a.Name)
		if err != nil {
			return err
		}
		a.Switch.Ports[a.Port].Interface = iface
		return nil

	case action.DestroyUserPort:
		port := &a.Switch.Ports[a.Port]
		a.Switch.EnabledPorts.Clear(a.Port)
		if port.Interface == nil {
			return nil
		}
		iface := port.Interface
		port.Interface = nil
		return e.host.DestroyUserPort(ctx, a.Switch, a.Port, iface)

	case action.SetupUplinkStats:
		return e.host.SetupUplinkStats(ctx, a.Switch, a.Port)

	case action.RestoreUplinkStats:
		return e.host.RestoreUplinkStats(ctx, a.Switch)

	case action.PublishHook:
		return publish(a.Tree)

	case action.UnpublishHook:
		if a.Tree.Master != nil {
			a.Tree.Master.Unpublish()
		}
		a.Tree.State = dsa.TreeUnapplied
		return nil

	default:
		return fmt.Errorf("unknown action type: %T", a)
	}
}

// publish marks t applied and exposes its hook. The hook is fully built
// before the atomic store makes it visible.
func publish(t *dsa.Tree) error {
	if t.Master == nil {
		return fmt.Errorf("tree %d: %w", t.ID, dsa.ErrMissingUplink)
	}
	if t.Tagger == nil || t.Rcv == nil {
		return fmt.Errorf("tree %d: %w", t.ID, dsa.ErrNoTagger)
	}
	t.State = dsa.TreeApplied
	t.Master.Publish(&dsa.Hook{
		Tree:     t.ID,
		Protocol: t.Tagger.Protocol,
		Rcv:      t.Rcv,
	})
	return nil
}

// treeOf returns the switch's tree, or a detached placeholder whose
// RegisterNotifier reports the switch as not a member.
func treeOf(sw *dsa.Switch) *dsa.Tree {
	if t := sw.Tree(); t != nil {
		return t
	}
	return &dsa.Tree{}
}
