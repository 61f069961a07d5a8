package dsa

import (
	"math/bits"
	"strconv"
	"strings"
)

// Reserved legacy port names.
const (
	PortNameLink   = "dsa"
	PortNameUplink = "cpu"
)

// PortRole is the resolved role of a port.
type PortRole int

const (
	RoleUnused PortRole = iota
	RoleLink
	RoleUplink
	RoleUser
)

func (r PortRole) String() string {
	switch r {
	case RoleUnused:
		return "unused"
	case RoleLink:
		return "link"
	case RoleUplink:
		return "uplink"
	case RoleUser:
		return "user"
	default:
		return "PortRole(" + strconv.Itoa(int(r)) + ")"
	}
}

// Interface is whatever the port provisioner created for a user port.
type Interface interface {
	Name() string
}

// Port is one physical port of a switch.
//
// Exactly one of Node and Name is the classification input: Node for
// structured descriptions, Name for legacy ones.
type Port struct {
	Index int

	Node ConfigNode
	Name string

	// HostDevice names the host interface behind a legacy uplink port.
	HostDevice string

	// Interface is set once a user port has been created. An enabled
	// user port may legitimately have no interface if creation failed.
	Interface Interface
}

// Valid reports whether the port is described at all. Legacy
// descriptions need a name to tell a disabled port from a missing one.
func (p *Port) Valid() bool {
	return p.Node != nil || p.Name != ""
}

// IsLink reports whether the port is wired to another switch. A
// structured port labelled with a reserved name counts even without a
// link reference.
func (p *Port) IsLink() bool {
	if p.reservedName() == PortNameLink {
		return true
	}
	return p.Node != nil && p.Node.References(PropLink) > 0
}

// IsUplink reports whether the port is wired to a host device.
func (p *Port) IsUplink() bool {
	if p.reservedName() == PortNameUplink {
		return true
	}
	return p.Node != nil && p.Node.References(PropEthernet) > 0
}

func (p *Port) reservedName() string {
	if p.Node == nil {
		return p.Name
	}
	label, _ := p.Node.ReadString(PropLabel)
	return label
}

// Role resolves the port's role. Link wins over uplink, uplink over
// user.
func (p *Port) Role() PortRole {
	switch {
	case !p.Valid():
		return RoleUnused
	case p.IsLink():
		return RoleLink
	case p.IsUplink():
		return RoleUplink
	default:
		return RoleUser
	}
}

// Label returns the name a user port's interface should get, or "" to
// let the provisioner choose.
func (p *Port) Label() string {
	if p.Node != nil {
		if label, ok := p.Node.ReadString(PropLabel); ok {
			return label
		}
		return ""
	}
	return p.Name
}

// PortMask is a bitmask of port indices.
type PortMask uint32

func (m PortMask) Has(port int) bool { return m&(1<<uint(port)) != 0 }

func (m *PortMask) Set(port int) { *m |= 1 << uint(port) }

func (m *PortMask) Clear(port int) { *m &^= 1 << uint(port) }

// Count returns the number of ports in the mask.
func (m PortMask) Count() int { return bits.OnesCount32(uint32(m)) }

// Ports returns the port indices in the mask in ascending order.
func (m PortMask) Ports() []int {
	var ports []int
	for v := uint32(m); v != 0; v &= v - 1 {
		ports = append(ports, bits.TrailingZeros32(v))
	}
	return ports
}

func (m PortMask) String() string {
	ports := m.Ports()
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
