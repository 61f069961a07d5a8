package manager

import (
	"context"
	"fmt"

	"github.com/frobware/go-dsa"
)

// resolve finds the tree's uplink and tagger. It runs only on a
// complete tree.
//
// Members are scanned in index order and their uplink ports in port
// order. The first member with an uplink becomes the uplink switch and
// the first device found becomes the tree's master; later uplinks are
// recorded per switch but not checked for agreement.
func (m *Manager) resolve(ctx context.Context, t *dsa.Tree) error {
	t.ResetTopology()

	for _, sw := range t.Switches() {
		sw.Master = nil
		for i := range sw.Ports {
			port := &sw.Ports[i]
			if port.Role() != dsa.RoleUplink {
				continue
			}
			dev, err := m.uplinkDevice(ctx, sw, port)
			if err != nil {
				t.ResetTopology()
				return err
			}
			if sw.Master == nil {
				sw.Master = dev
			}
			if t.Master == nil {
				t.Master = dev
			}
			if t.UplinkSwitch == nil {
				t.UplinkSwitch = sw
				t.UplinkPort = port.Index
			}
		}
	}

	if t.Master == nil {
		return fmt.Errorf("tree %d: %w", t.ID, dsa.ErrMissingUplink)
	}

	proto := t.UplinkSwitch.Ops.TagProtocol(t.UplinkSwitch)
	ops, err := m.taggers.Resolve(proto)
	if err != nil {
		m.logger.WarnContext(ctx, "no tagger for this switch", "switch", t.UplinkSwitch, "protocol", proto)
		t.ResetTopology()
		return fmt.Errorf("tree %d: %w", t.ID, err)
	}
	t.Tagger = ops
	t.Rcv = ops.Rcv

	m.logger.DebugContext(ctx, "tree resolved",
		"tree", t.ID,
		"master", t.Master,
		"uplink_switch", t.UplinkSwitch,
		"uplink_port", t.UplinkPort,
		"protocol", ops.Protocol)
	return nil
}

// uplinkDevice resolves the host device behind an uplink port.
func (m *Manager) uplinkDevice(ctx context.Context, sw *dsa.Switch, port *dsa.Port) (*dsa.NetDevice, error) {
	if port.Node != nil {
		node, err := port.Node.Reference(dsa.PropEthernet, 0)
		if err != nil {
			return nil, &dsa.ValidationError{
				Field:  dsa.PropEthernet,
				Reason: fmt.Sprintf("switch %s port %d", sw, port.Index),
				Err:    err,
			}
		}
		return m.host.NetDeviceByNode(ctx, node)
	}

	if port.HostDevice == "" {
		return nil, dsa.Invalid("host device", "switch %s uplink port %d names no host device", sw, port.Index)
	}
	return m.host.NetDeviceByName(ctx, port.HostDevice)
}
