package compute

import (
	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/action"
)

// ApplyPlan computes the actions that activate a resolved tree. Members
// are brought up in index order; the uplink stats and the hook come
// last so that the data plane never sees a half-built tree.
// Pure function.
func ApplyPlan(t *dsa.Tree) []action.Action {
	var actions []action.Action
	for _, sw := range t.Switches() {
		actions = append(actions, SwitchApplyPlan(t, sw)...)
	}
	if t.UplinkSwitch != nil {
		actions = append(actions, action.SetupUplinkStats{Switch: t.UplinkSwitch, Port: t.UplinkPort})
	}
	actions = append(actions, action.PublishHook{Tree: t})
	return actions
}

// SwitchApplyPlan computes the actions that bring up one member.
// Pure function.
func SwitchApplyPlan(t *dsa.Tree, sw *dsa.Switch) []action.Action {
	actions := []action.Action{
		action.InitPorts{Switch: sw},
		action.SetupSwitch{Switch: sw},
		action.RegisterNotifier{Switch: sw},
	}

	if _, ok := sw.Ops.(dsa.AddressSetter); ok && t.Master != nil {
		actions = append(actions, action.SetAddress{Switch: sw, Addr: t.Master.HardwareAddr})
	}

	if _, ok := sw.Ops.(dsa.PHYAccessor); ok && sw.MDIOBus == nil {
		actions = append(actions, action.RegisterMDIOBus{Switch: sw})
	}

	for i := range sw.Ports {
		port := &sw.Ports[i]
		switch port.Role() {
		case dsa.RoleLink:
			actions = append(actions, action.SetupLinkPort{Switch: sw, Port: port.Index})
		case dsa.RoleUplink:
			actions = append(actions, action.SetupUplinkPort{Switch: sw, Port: port.Index})
		case dsa.RoleUser:
			actions = append(actions, action.CreateUserPort{Switch: sw, Port: port.Index, Name: port.Label()})
		}
	}

	return actions
}

// UnapplyPlan computes the actions that deactivate an applied tree. The
// hook is withdrawn first so readers stop using the tree before any
// member is torn down. An unapplied tree needs no actions.
// Pure function.
func UnapplyPlan(t *dsa.Tree) []action.Action {
	if !t.Applied() {
		return nil
	}

	actions := []action.Action{action.UnpublishHook{Tree: t}}
	for _, sw := range t.Switches() {
		actions = append(actions, SwitchUnapplyPlan(sw)...)
	}
	if t.UplinkSwitch != nil {
		actions = append(actions, action.RestoreUplinkStats{Switch: t.UplinkSwitch})
	}
	return actions
}

// SwitchUnapplyPlan computes the actions that take one member down.
// User ports go before link and uplink ports.
// Pure function.
func SwitchUnapplyPlan(sw *dsa.Switch) []action.Action {
	var actions []action.Action

	for i := range sw.Ports {
		if sw.Ports[i].Role() == dsa.RoleUser {
			actions = append(actions, action.DestroyUserPort{Switch: sw, Port: i})
		}
	}
	for i := range sw.Ports {
		switch sw.Ports[i].Role() {
		case dsa.RoleLink:
			actions = append(actions, action.TeardownLinkPort{Switch: sw, Port: i})
		case dsa.RoleUplink:
			actions = append(actions, action.TeardownUplinkPort{Switch: sw, Port: i})
		}
	}

	if sw.OwnsMDIOBus {
		actions = append(actions, action.UnregisterMDIOBus{Switch: sw})
	}

	actions = append(actions,
		action.UnregisterNotifier{Switch: sw},
		action.TeardownSwitch{Switch: sw},
		action.ResetPorts{Switch: sw},
	)
	return actions
}
