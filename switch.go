package dsa

import (
	"context"
	"fmt"
	"net"
)

const (
	// MaxSwitches bounds the member index within a tree.
	MaxSwitches = 4

	// MaxPorts bounds the number of ports on one switch.
	MaxPorts = 12

	// RouteNone marks a routing table entry with no route.
	RouteNone = -1
)

// SwitchOps is the capability handle a switch driver supplies.
type SwitchOps interface {
	// Setup runs once per activation, after the enabled port mask has
	// been initialised.
	Setup(ctx context.Context, sw *Switch) error

	// TagProtocol returns the tagging protocol the switch wants on its
	// uplink.
	TagProtocol(sw *Switch) TagProtocol
}

// AddressSetter is implemented by drivers that can program the fabric
// MAC address.
type AddressSetter interface {
	SetAddress(ctx context.Context, sw *Switch, addr net.HardwareAddr) error
}

// PHYAccessor is implemented by drivers that expose PHY registers. The
// fabric creates a management bus for such switches unless they bring
// their own.
type PHYAccessor interface {
	PHYRead(sw *Switch, port, reg int) (uint16, error)
	PHYWrite(sw *Switch, port, reg int, val uint16) error
}

// Teardowner is implemented by drivers that need to undo Setup.
type Teardowner interface {
	Teardown(ctx context.Context, sw *Switch) error
}

// NotificationHandler is implemented by drivers that react to
// fabric-wide notifications.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, sw *Switch, n Notification) error
}

// MDIOBus is the management bus handle created for a switch.
type MDIOBus interface {
	ID() string
}

// Switch is one chip in a tree.
type Switch struct {
	Ops  SwitchOps
	Name string

	// Ports is sized at allocation and never reindexed.
	Ports []Port

	EnabledPorts PortMask
	LinkPorts    PortMask
	UplinkPorts  PortMask
	PhyMask      PortMask

	// RTable maps a peer member index to the local port that reaches
	// it directly, or RouteNone.
	RTable [MaxSwitches]int

	// Master is the first host device resolved behind this switch.
	Master *NetDevice

	MDIOBus MDIOBus
	// OwnsMDIOBus is set when MDIOBus was created during activation.
	OwnsMDIOBus bool

	// ConfiguredPorts is the enabled mask derived from the description
	// at registration time. Activation copies it into EnabledPorts.
	ConfiguredPorts PortMask

	tree  *Tree
	index uint32
}

// NewSwitch allocates a switch with numPorts ports.
func NewSwitch(name string, ops SwitchOps, numPorts int) (*Switch, error) {
	if ops == nil {
		return nil, fmt.Errorf("switch %q: nil ops", name)
	}
	if numPorts <= 0 || numPorts > MaxPorts {
		return nil, Invalid("port count", "%d outside 1..%d", numPorts, MaxPorts)
	}
	sw := &Switch{
		Ops:   ops,
		Name:  name,
		Ports: make([]Port, numPorts),
	}
	for i := range sw.Ports {
		sw.Ports[i].Index = i
	}
	sw.ResetRoutes()
	return sw, nil
}

// NumPorts returns the physical port count.
func (s *Switch) NumPorts() int { return len(s.Ports) }

// Tree returns the tree the switch is a member of, or nil.
func (s *Switch) Tree() *Tree { return s.tree }

// Index returns the switch's member index. Only meaningful while Tree
// is non-nil.
func (s *Switch) Index() uint32 { return s.index }

// ResetRoutes marks every routing table entry as having no route.
func (s *Switch) ResetRoutes() {
	for i := range s.RTable {
		s.RTable[i] = RouteNone
	}
}

// Route returns the local port that reaches member, and whether there
// is one.
func (s *Switch) Route(member uint32) (int, bool) {
	if member >= MaxSwitches || s.RTable[member] == RouteNone {
		return RouteNone, false
	}
	return s.RTable[member], true
}

func (s *Switch) String() string {
	if s.tree == nil {
		return s.Name
	}
	return fmt.Sprintf("%s(%d/%d)", s.Name, s.tree.ID, s.index)
}
