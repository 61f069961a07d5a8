package dsa

import (
	"errors"
	"fmt"
)

// Membership is where a switch asks to be placed.
type Membership struct {
	Tree  TreeID
	Index uint32
}

// Configure loads cfg into the switch's port records and returns the
// requested membership. It resets any earlier configuration, so a
// failed registration can be retried with the same switch. Nothing
// outside the switch is touched.
func (s *Switch) Configure(cfg SwitchConfig) (Membership, error) {
	for i := range s.Ports {
		s.Ports[i] = Port{Index: i}
	}
	s.ConfiguredPorts = 0

	switch cfg := cfg.(type) {
	case StructuredConfig:
		return s.configureStructured(cfg)
	case LegacyConfig:
		return s.configureLegacy(cfg)
	case *StructuredConfig:
		return s.configureStructured(*cfg)
	case *LegacyConfig:
		return s.configureLegacy(*cfg)
	default:
		return Membership{}, Invalid("config", "unsupported description %T", cfg)
	}
}

func (s *Switch) configureStructured(cfg StructuredConfig) (Membership, error) {
	if cfg.Node == nil {
		return Membership{}, Invalid("config", "no description node")
	}
	m, err := parseMember(cfg.Node)
	if err != nil {
		return Membership{}, err
	}

	ports, ok := cfg.Node.Child(NodePorts)
	if !ok {
		return Membership{}, Invalid(NodePorts, "%s has no %q child", cfg.Node.Path(), NodePorts)
	}
	for _, pn := range ports.Children() {
		reg, err := pn.ReadU32(PropReg, 0)
		if err != nil {
			return Membership{}, &ValidationError{Field: PropReg, Reason: pn.Path(), Err: err}
		}
		if int(reg) >= s.NumPorts() {
			return Membership{}, Invalid(PropReg, "%s: port %d not below %d", pn.Path(), reg, s.NumPorts())
		}
		port := &s.Ports[reg]
		port.Node = pn
		if !port.IsUplink() {
			s.ConfiguredPorts.Set(int(reg))
		}
	}

	if err := s.checkValidPorts(); err != nil {
		return Membership{}, err
	}
	return m, nil
}

func (s *Switch) configureLegacy(cfg LegacyConfig) (Membership, error) {
	for i, name := range cfg.PortNames {
		if name == "" {
			continue
		}
		if i >= s.NumPorts() {
			return Membership{}, Invalid("port name", "%q at port %d not below %d", name, i, s.NumPorts())
		}
		port := &s.Ports[i]
		port.Name = name
		port.HostDevice = cfg.HostDevices[i]
		if !port.IsUplink() {
			s.ConfiguredPorts.Set(i)
		}
	}

	if err := s.checkValidPorts(); err != nil {
		return Membership{}, err
	}
	return Membership{}, nil
}

func (s *Switch) checkValidPorts() error {
	for i := range s.Ports {
		if s.Ports[i].Valid() {
			return nil
		}
	}
	return Invalid("ports", "switch %s describes no ports", s.Name)
}

// parseMember reads the optional "dsa,member = <tree index>" property.
// When absent the switch is member 0 of tree 0.
func parseMember(node ConfigNode) (Membership, error) {
	tree, err := node.ReadU32(PropMember, 0)
	if errors.Is(err, ErrPropertyAbsent) {
		return Membership{}, nil
	}
	if err != nil {
		return Membership{}, &ValidationError{Field: PropMember, Reason: node.Path(), Err: err}
	}
	index, err := node.ReadU32(PropMember, 1)
	if err != nil {
		return Membership{}, &ValidationError{Field: PropMember, Reason: node.Path(), Err: err}
	}
	if index >= MaxSwitches {
		return Membership{}, Invalid(PropMember, "%s: index %d not below %d", node.Path(), index, MaxSwitches)
	}
	return Membership{Tree: TreeID(tree), Index: index}, nil
}

func (m Membership) String() string {
	return fmt.Sprintf("%d/%d", m.Tree, m.Index)
}
