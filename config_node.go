package dsa

// ConfigNode is a handle into a structured (tree-capable) switch
// description. Implementations must be comparable: two handles refer to
// the same node if and only if they are ==. Completion relies on this to
// find which switch owns a link target.
type ConfigNode interface {
	// Path names the node for diagnostics.
	Path() string

	// ReadU32 returns element index of a u32 array property. It returns
	// an error wrapping ErrPropertyAbsent when the property does not
	// exist, and a different error when it exists but is too short or
	// has the wrong type.
	ReadU32(prop string, index int) (uint32, error)

	// ReadString returns a string property.
	ReadString(prop string) (string, bool)

	// Child returns the named child node.
	Child(name string) (ConfigNode, bool)

	// Children returns the available children in declaration order.
	Children() []ConfigNode

	// References reports how many references prop declares.
	References(prop string) int

	// Reference resolves the index-th reference of prop. A declared
	// reference that does not resolve to a node is an error.
	Reference(prop string, index int) (ConfigNode, error)
}

// Well-known description properties.
const (
	PropMember   = "dsa,member"
	PropReg      = "reg"
	PropLabel    = "label"
	PropLink     = "link"
	PropEthernet = "ethernet"
	NodePorts    = "ports"
)

// SwitchConfig is the description a switch registers with. It is either
// a StructuredConfig or a LegacyConfig.
type SwitchConfig interface {
	isSwitchConfig()
}

// StructuredConfig describes a switch through a node tree. Trees with
// more than one switch can only be built from structured descriptions.
type StructuredConfig struct {
	Node ConfigNode
}

func (StructuredConfig) isSwitchConfig() {}

// LegacyConfig is the flat, name-per-port description. Switches
// described this way always form tree 0, member 0.
type LegacyConfig struct {
	// PortNames is indexed by physical port. Empty entries are unused
	// ports; PortNameLink and PortNameUplink are reserved.
	PortNames [MaxPorts]string

	// HostDevices names the host interface behind each uplink port.
	HostDevices [MaxPorts]string
}

func (LegacyConfig) isSwitchConfig() {}
