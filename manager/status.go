package manager

import (
	"context"
	"fmt"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/lock"
)

// TreeStatus is a point-in-time copy of a tree. It shares nothing with
// the live tree and can be read without the writer lock.
type TreeStatus struct {
	ID           dsa.TreeID
	State        dsa.TreeState
	Refs         int
	Master       string
	UplinkSwitch string
	UplinkPort   int
	Protocol     dsa.TagProtocol
	Members      []MemberStatus
}

// MemberStatus describes one switch of a tree.
type MemberStatus struct {
	Index     uint32
	Name      string
	Master    string
	Enabled   dsa.PortMask
	Link      dsa.PortMask
	Uplink    dsa.PortMask
	Phy       dsa.PortMask
	Routes    [dsa.MaxSwitches]int
	Notifying bool
	MDIOBus   string
	Ports     []PortStatus
}

// PortStatus describes one described port.
type PortStatus struct {
	Index     int
	Role      dsa.PortRole
	Label     string
	Enabled   bool
	Interface string
}

// Trees returns a snapshot of every tree, ordered by id.
func (m *Manager) Trees(ctx context.Context) ([]TreeStatus, error) {
	var out []TreeStatus
	err := m.lock.Run(ctx, func(_ context.Context, _ lock.WriterScope) error {
		for _, t := range m.registry.Trees() {
			out = append(out, snapshot(t))
		}
		return nil
	})
	return out, err
}

// Tree returns a snapshot of one tree.
func (m *Manager) Tree(ctx context.Context, id dsa.TreeID) (TreeStatus, error) {
	var out TreeStatus
	err := m.lock.Run(ctx, func(_ context.Context, _ lock.WriterScope) error {
		t, ok := m.registry.Lookup(id)
		if !ok {
			return fmt.Errorf("tree %d: %w", id, ErrTreeNotFound)
		}
		out = snapshot(t)
		return nil
	})
	return out, err
}

func snapshot(t *dsa.Tree) TreeStatus {
	ts := TreeStatus{
		ID:         t.ID,
		State:      t.State,
		Refs:       t.Refs(),
		UplinkPort: t.UplinkPort,
	}
	if t.Master != nil {
		ts.Master = t.Master.Name
	}
	if t.UplinkSwitch != nil {
		ts.UplinkSwitch = t.UplinkSwitch.Name
	}
	if t.Tagger != nil {
		ts.Protocol = t.Tagger.Protocol
	}

	for i, sw := range t.Switches() {
		ms := MemberStatus{
			Index:     i,
			Name:      sw.Name,
			Enabled:   sw.EnabledPorts,
			Link:      sw.LinkPorts,
			Uplink:    sw.UplinkPorts,
			Phy:       sw.PhyMask,
			Routes:    sw.RTable,
			Notifying: t.Notifying(sw),
		}
		if sw.Master != nil {
			ms.Master = sw.Master.Name
		}
		if sw.MDIOBus != nil {
			ms.MDIOBus = sw.MDIOBus.ID()
		}
		for pi := range sw.Ports {
			p := &sw.Ports[pi]
			if !p.Valid() {
				continue
			}
			ps := PortStatus{
				Index:   p.Index,
				Role:    p.Role(),
				Label:   p.Label(),
				Enabled: sw.EnabledPorts.Has(p.Index),
			}
			if p.Interface != nil {
				ps.Interface = p.Interface.Name()
			}
			ms.Ports = append(ms.Ports, ps)
		}
		ts.Members = append(ts.Members, ms)
	}
	return ts
}
