// Package action contains reified effects - descriptions of what to do
// to a tree's hardware without actually doing it. These are pure data
// structures; package interpreter carries them out.
package action

import (
	"fmt"
	"net"

	"github.com/frobware/go-dsa"
)

// Action represents an effect to be executed.
// Actions are data - they describe what to do, not how.
type Action interface {
	isAction()
	// Describe names the step for logs and errors.
	Describe() string
}

// Switch bring-up

// InitPorts copies the configured port mask into the enabled and PHY
// masks. It runs before SetupSwitch so the driver sees the final masks.
type InitPorts struct {
	Switch *dsa.Switch
}

func (InitPorts) isAction()          {}
func (a InitPorts) Describe() string { return fmt.Sprintf("init ports %s", a.Switch) }

// ResetPorts clears the enabled and PHY masks.
type ResetPorts struct {
	Switch *dsa.Switch
}

func (ResetPorts) isAction()          {}
func (a ResetPorts) Describe() string { return fmt.Sprintf("reset ports %s", a.Switch) }

// SetupSwitch runs the driver's setup hook.
type SetupSwitch struct {
	Switch *dsa.Switch
}

func (SetupSwitch) isAction()          {}
func (a SetupSwitch) Describe() string { return fmt.Sprintf("setup %s", a.Switch) }

// TeardownSwitch runs the driver's teardown hook, if it has one.
type TeardownSwitch struct {
	Switch *dsa.Switch
}

func (TeardownSwitch) isAction()          {}
func (a TeardownSwitch) Describe() string { return fmt.Sprintf("teardown %s", a.Switch) }

// RegisterNotifier subscribes the switch to fabric-wide notifications.
type RegisterNotifier struct {
	Switch *dsa.Switch
}

func (RegisterNotifier) isAction() {}
func (a RegisterNotifier) Describe() string {
	return fmt.Sprintf("register notifier %s", a.Switch)
}

// UnregisterNotifier unsubscribes the switch.
type UnregisterNotifier struct {
	Switch *dsa.Switch
}

func (UnregisterNotifier) isAction() {}
func (a UnregisterNotifier) Describe() string {
	return fmt.Sprintf("unregister notifier %s", a.Switch)
}

// SetAddress programs the fabric MAC address.
type SetAddress struct {
	Switch *dsa.Switch
	Addr   net.HardwareAddr
}

func (SetAddress) isAction() {}
func (a SetAddress) Describe() string {
	return fmt.Sprintf("set address %s on %s", a.Addr, a.Switch)
}

// RegisterMDIOBus creates and registers a management bus.
type RegisterMDIOBus struct {
	Switch *dsa.Switch
}

func (RegisterMDIOBus) isAction() {}
func (a RegisterMDIOBus) Describe() string {
	return fmt.Sprintf("register mdio bus %s", a.Switch)
}

// UnregisterMDIOBus unregisters a bus created by RegisterMDIOBus.
type UnregisterMDIOBus struct {
	Switch *dsa.Switch
}

func (UnregisterMDIOBus) isAction() {}
func (a UnregisterMDIOBus) Describe() string {
	return fmt.Sprintf("unregister mdio bus %s", a.Switch)
}

// Ports

// SetupLinkPort prepares a port wired to another switch.
type SetupLinkPort struct {
	Switch *dsa.Switch
	Port   int
}

func (SetupLinkPort) isAction() {}
func (a SetupLinkPort) Describe() string {
	return fmt.Sprintf("setup link port %s:%d", a.Switch, a.Port)
}

// TeardownLinkPort undoes SetupLinkPort.
type TeardownLinkPort struct {
	Switch *dsa.Switch
	Port   int
}

func (TeardownLinkPort) isAction() {}
func (a TeardownLinkPort) Describe() string {
	return fmt.Sprintf("teardown link port %s:%d", a.Switch, a.Port)
}

// SetupUplinkPort prepares a port wired to the host. Same hardware
// treatment as a link port; it also marks the uplink mask.
type SetupUplinkPort struct {
	Switch *dsa.Switch
	Port   int
}

func (SetupUplinkPort) isAction() {}
func (a SetupUplinkPort) Describe() string {
	return fmt.Sprintf("setup uplink port %s:%d", a.Switch, a.Port)
}

// TeardownUplinkPort undoes SetupUplinkPort.
type TeardownUplinkPort struct {
	Switch *dsa.Switch
	Port   int
}

func (TeardownUplinkPort) isAction() {}
func (a TeardownUplinkPort) Describe() string {
	return fmt.Sprintf("teardown uplink port %s:%d", a.Switch, a.Port)
}

// CreateUserPort creates the user-facing interface of a port. Failure
// is tolerated: the port stays without an interface.
type CreateUserPort struct {
	Switch *dsa.Switch
	Port   int
	Name   string
}

func (CreateUserPort) isAction() {}
func (a CreateUserPort) Describe() string {
	return fmt.Sprintf("create user port %s:%d", a.Switch, a.Port)
}

// DestroyUserPort destroys the port's interface, if any, and clears its
// enabled bit.
type DestroyUserPort struct {
	Switch *dsa.Switch
	Port   int
}

func (DestroyUserPort) isAction() {}
func (a DestroyUserPort) Describe() string {
	return fmt.Sprintf("destroy user port %s:%d", a.Switch, a.Port)
}

// Tree-wide

// SetupUplinkStats wires data-plane counters on the uplink switch.
type SetupUplinkStats struct {
	Switch *dsa.Switch
	Port   int
}

func (SetupUplinkStats) isAction() {}
func (a SetupUplinkStats) Describe() string {
	return fmt.Sprintf("setup uplink stats %s:%d", a.Switch, a.Port)
}

// RestoreUplinkStats undoes SetupUplinkStats.
type RestoreUplinkStats struct {
	Switch *dsa.Switch
}

func (RestoreUplinkStats) isAction() {}
func (a RestoreUplinkStats) Describe() string {
	return fmt.Sprintf("restore uplink stats %s", a.Switch)
}

// PublishHook marks the tree applied and exposes its receive hook on
// the uplink device.
type PublishHook struct {
	Tree *dsa.Tree
}

func (PublishHook) isAction() {}
func (a PublishHook) Describe() string {
	return fmt.Sprintf("publish tree %d on %s", a.Tree.ID, a.Tree.Master)
}

// UnpublishHook withdraws the receive hook and marks the tree
// unapplied.
type UnpublishHook struct {
	Tree *dsa.Tree
}

func (UnpublishHook) isAction() {}
func (a UnpublishHook) Describe() string {
	return fmt.Sprintf("unpublish tree %d from %s", a.Tree.ID, a.Tree.Master)
}

// Inverse returns the action that undoes a, and false when a has
// nothing to undo.
func Inverse(a Action) (Action, bool) {
	switch a := a.(type) {
	case InitPorts:
		return ResetPorts{Switch: a.Switch}, true
	case SetupSwitch:
		return TeardownSwitch{Switch: a.Switch}, true
	case RegisterNotifier:
		return UnregisterNotifier{Switch: a.Switch}, true
	case RegisterMDIOBus:
		return UnregisterMDIOBus{Switch: a.Switch}, true
	case SetupLinkPort:
		return TeardownLinkPort{Switch: a.Switch, Port: a.Port}, true
	case SetupUplinkPort:
		return TeardownUplinkPort{Switch: a.Switch, Port: a.Port}, true
	case CreateUserPort:
		return DestroyUserPort{Switch: a.Switch, Port: a.Port}, true
	case SetupUplinkStats:
		return RestoreUplinkStats{Switch: a.Switch}, true
	case PublishHook:
		return UnpublishHook{Tree: a.Tree}, true
	default:
		return nil, false
	}
}

// SwitchOf returns the switch a acts on, or nil for tree-wide actions.
func SwitchOf(a Action) *dsa.Switch {
	switch a := a.(type) {
	case InitPorts:
		return a.Switch
	case ResetPorts:
		return a.Switch
	case SetupSwitch:
		return a.Switch
	case TeardownSwitch:
		return a.Switch
	case RegisterNotifier:
		return a.Switch
	case UnregisterNotifier:
		return a.Switch
	case SetAddress:
		return a.Switch
	case RegisterMDIOBus:
		return a.Switch
	case UnregisterMDIOBus:
		return a.Switch
	case SetupLinkPort:
		return a.Switch
	case TeardownLinkPort:
		return a.Switch
	case SetupUplinkPort:
		return a.Switch
	case TeardownUplinkPort:
		return a.Switch
	case CreateUserPort:
		return a.Switch
	case DestroyUserPort:
		return a.Switch
	case SetupUplinkStats:
		return a.Switch
	case RestoreUplinkStats:
		return a.Switch
	default:
		return nil
	}
}
