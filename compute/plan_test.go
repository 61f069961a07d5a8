package compute_test

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/action"
	"github.com/frobware/go-dsa/compute"
)

// phyOps is a driver that also programs addresses and exposes PHYs.
type phyOps struct{ nopOps }

func (phyOps) SetAddress(context.Context, *dsa.Switch, net.HardwareAddr) error { return nil }
func (phyOps) PHYRead(*dsa.Switch, int, int) (uint16, error)                   { return 0, nil }
func (phyOps) PHYWrite(*dsa.Switch, int, int, uint16) error                    { return nil }

func describe(actions []action.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = fmt.Sprintf("%T", a)
	}
	return out
}

func resolvedChain(t *testing.T) *dsa.Tree {
	t.Helper()
	tree := buildTree(t, chain, "sw0", "sw1", "sw2")
	tree.Master = &dsa.NetDevice{Name: "eth0", HardwareAddr: net.HardwareAddr{2, 0, 0, 0, 0, 1}}
	tree.UplinkSwitch = tree.Switch(0)
	tree.UplinkPort = 5
	return tree
}

func TestApplyPlan_OrdersMembersThenPublishes(t *testing.T) {
	tree := resolvedChain(t)

	got := describe(compute.ApplyPlan(tree))

	want := []string{
		// sw0: user port 0, uplink 5, link 6
		"action.InitPorts", "action.SetupSwitch", "action.RegisterNotifier",
		"action.CreateUserPort", "action.SetupUplinkPort", "action.SetupLinkPort",
		// sw1: user port 0, link 5, link 6
		"action.InitPorts", "action.SetupSwitch", "action.RegisterNotifier",
		"action.CreateUserPort", "action.SetupLinkPort", "action.SetupLinkPort",
		// sw2: user port 1, link 5
		"action.InitPorts", "action.SetupSwitch", "action.RegisterNotifier",
		"action.CreateUserPort", "action.SetupLinkPort",
		"action.SetupUplinkStats", "action.PublishHook",
	}
	assert.Equal(t, want, got)
}

func TestApplyPlan_OptionalDriverCapabilities(t *testing.T) {
	tree := resolvedChain(t)
	sw := tree.Switch(1)
	sw.Ops = phyOps{}

	actions := compute.SwitchApplyPlan(tree, sw)
	require.GreaterOrEqual(t, len(actions), 5)

	addr, ok := actions[3].(action.SetAddress)
	require.True(t, ok, "got %T", actions[3])
	assert.Equal(t, tree.Master.HardwareAddr, addr.Addr)
	assert.IsType(t, action.RegisterMDIOBus{}, actions[4])

	t.Run("existing bus is kept", func(t *testing.T) {
		sw.MDIOBus = fakeBus("external")
		defer func() { sw.MDIOBus = nil }()
		for _, a := range compute.SwitchApplyPlan(tree, sw) {
			assert.NotEqual(t, "action.RegisterMDIOBus", fmt.Sprintf("%T", a))
		}
	})
}

func TestApplyPlan_UserPortNamedByLabel(t *testing.T) {
	tree := resolvedChain(t)

	for _, a := range compute.SwitchApplyPlan(tree, tree.Switch(2)) {
		if cu, ok := a.(action.CreateUserPort); ok {
			assert.Equal(t, 1, cu.Port)
			assert.Equal(t, "lan3", cu.Name)
			return
		}
	}
	t.Fatal("no CreateUserPort action")
}

func TestUnapplyPlan_UnappliedTreeIsNoop(t *testing.T) {
	tree := resolvedChain(t)
	assert.Empty(t, compute.UnapplyPlan(tree))
}

func TestUnapplyPlan_UnpublishesFirst(t *testing.T) {
	tree := resolvedChain(t)
	tree.State = dsa.TreeApplied
	tree.Switch(0).OwnsMDIOBus = true

	got := describe(compute.UnapplyPlan(tree))

	want := []string{
		"action.UnpublishHook",
		"action.DestroyUserPort", "action.TeardownUplinkPort", "action.TeardownLinkPort",
		"action.UnregisterMDIOBus", "action.UnregisterNotifier", "action.TeardownSwitch", "action.ResetPorts",
		"action.DestroyUserPort", "action.TeardownLinkPort", "action.TeardownLinkPort",
		"action.UnregisterNotifier", "action.TeardownSwitch", "action.ResetPorts",
		"action.DestroyUserPort", "action.TeardownLinkPort",
		"action.UnregisterNotifier", "action.TeardownSwitch", "action.ResetPorts",
		"action.RestoreUplinkStats",
	}
	assert.Equal(t, want, got)
}

func TestInverse_PairsApplyWithUnapply(t *testing.T) {
	tree := resolvedChain(t)
	for _, a := range compute.ApplyPlan(tree) {
		inv, ok := action.Inverse(a)
		require.True(t, ok, "%T has no inverse", a)
		assert.NotNil(t, inv)
	}

	_, ok := action.Inverse(action.SetAddress{})
	assert.False(t, ok)
}

type fakeBus string

func (b fakeBus) ID() string { return string(b) }
