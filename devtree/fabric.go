// Package devtree loads fabric description files.
//
// A description lists the switches of one host together with how their
// ports are wired. It plays the role a device tree plays on embedded
// systems: switches described with port tables become structured
// dsa.ConfigNode trees, switches described with a legacy table become
// dsa.LegacyConfig values. Both TOML and YAML are accepted:
//
//	[[switch]]
//	name   = "sw0"
//	driver = "sim"
//	ports  = 7
//	member = [0, 0]
//
//	  [[switch.port]]
//	  reg   = 0
//	  label = "lan1"
//
//	  [[switch.port]]
//	  reg      = 5
//	  ethernet = "eth0"
//
//	  [[switch.port]]
//	  reg  = 6
//	  link = ["sw1/6"]
//
// Link references name a port as "<switch>/<reg>". A reference to a
// switch or port the file does not describe is kept dangling and fails
// validation when the tree is checked for completion.
package devtree

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"

	"github.com/frobware/go-dsa"
)

// Format is the encoding of a description file.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from the file extension. Anything that
// is not .yaml or .yml is treated as TOML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Description is the decoded file.
type Description struct {
	Switches []SwitchDesc `toml:"switch" yaml:"switch"`
}

// SwitchDesc describes one switch.
type SwitchDesc struct {
	Name   string   `toml:"name" yaml:"name"`
	Driver string   `toml:"driver" yaml:"driver"`
	Ports  int      `toml:"ports" yaml:"ports"`
	Member []uint32 `toml:"member" yaml:"member"`
	// Tag is the tagging protocol a simulated switch asks for.
	Tag    string      `toml:"tag" yaml:"tag"`
	Port   []PortDesc  `toml:"port" yaml:"port"`
	Legacy *LegacyDesc `toml:"legacy" yaml:"legacy"`
}

// PortDesc describes one port of a structured switch.
type PortDesc struct {
	Reg      *uint32  `toml:"reg" yaml:"reg"`
	Label    string   `toml:"label" yaml:"label"`
	Link     []string `toml:"link" yaml:"link"`
	Ethernet string   `toml:"ethernet" yaml:"ethernet"`
	Disabled bool     `toml:"disabled" yaml:"disabled"`
}

// LegacyDesc is the flat per-port name table.
type LegacyDesc struct {
	Names       []string `toml:"names" yaml:"names"`
	HostDevices []string `toml:"host_devices" yaml:"host_devices"`
}

// SwitchEntry is a switch ready to be allocated and registered.
type SwitchEntry struct {
	Name     string
	Driver   string
	NumPorts int
	Tag      dsa.TagProtocol
	Config   dsa.SwitchConfig
}

// Fabric is a loaded description.
type Fabric struct {
	Root     *Node
	switches []SwitchEntry
	byName   map[string]int
}

// Load reads and parses a description file.
func Load(path string) (*Fabric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fabric description: %w", err)
	}
	f, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes data and builds the node tree.
func Parse(data []byte, format Format) (*Fabric, error) {
	var desc Description
	switch format {
	case FormatYAML:
		if err := yaml.UnmarshalStrict(data, &desc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		md, err := toml.Decode(string(data), &desc)
		if err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return nil, fmt.Errorf("unknown key %q", undec[0].String())
		}
	}
	return Build(desc)
}

// Build turns a decoded description into a Fabric.
func Build(desc Description) (*Fabric, error) {
	f := &Fabric{
		Root:   newNode(nil, "fabric"),
		byName: make(map[string]int),
	}
	hosts := newNode(f.Root, "host")
	hostByName := make(map[string]*Node)
	swNodes := make(map[string]*Node)

	// First pass: nodes and properties. References are resolved once
	// every switch exists.
	type pendingLink struct {
		from *Node
		raw  string
	}
	var links []pendingLink

	for i, sd := range desc.Switches {
		if sd.Name == "" {
			return nil, fmt.Errorf("switch #%d: missing name", i)
		}
		if sd.Name == hosts.name || strings.Contains(sd.Name, "/") {
			return nil, fmt.Errorf("switch #%d: name %q is reserved or malformed", i, sd.Name)
		}
		if _, dup := f.byName[sd.Name]; dup {
			return nil, fmt.Errorf("switch %q: described twice", sd.Name)
		}
		if sd.Ports <= 0 || sd.Ports > dsa.MaxPorts {
			return nil, fmt.Errorf("switch %q: ports %d outside 1..%d", sd.Name, sd.Ports, dsa.MaxPorts)
		}
		tag, err := dsa.ParseTagProtocol(sd.Tag)
		if err != nil {
			return nil, fmt.Errorf("switch %q: %w", sd.Name, err)
		}
		entry := SwitchEntry{
			Name:     sd.Name,
			Driver:   sd.Driver,
			NumPorts: sd.Ports,
			Tag:      tag,
		}

		if sd.Legacy != nil {
			if len(sd.Port) > 0 || len(sd.Member) > 0 {
				return nil, fmt.Errorf("switch %q: legacy table cannot be combined with ports or member", sd.Name)
			}
			cfg, err := buildLegacy(sd.Legacy)
			if err != nil {
				return nil, fmt.Errorf("switch %q: %w", sd.Name, err)
			}
			entry.Config = cfg
		} else {
			swNode := newNode(f.Root, sd.Name)
			swNodes[sd.Name] = swNode
			if len(sd.Member) > 0 {
				swNode.u32[dsa.PropMember] = append([]uint32(nil), sd.Member...)
			}
			if len(sd.Port) > 0 {
				ports := newNode(swNode, dsa.NodePorts)
				seen := make(map[uint32]bool, len(sd.Port))
				for _, pd := range sd.Port {
					if pd.Reg != nil {
						if seen[*pd.Reg] {
							return nil, fmt.Errorf("switch %q: port reg %d described twice", sd.Name, *pd.Reg)
						}
						seen[*pd.Reg] = true
					}
					if pd.Disabled {
						continue
					}
					name := "port"
					if pd.Reg != nil {
						name = "port@" + strconv.FormatUint(uint64(*pd.Reg), 10)
					}
					pn := newNode(ports, name)
					if pd.Reg != nil {
						pn.u32[dsa.PropReg] = []uint32{*pd.Reg}
					}
					if pd.Label != "" {
						pn.str[dsa.PropLabel] = pd.Label
					}
					for _, raw := range pd.Link {
						links = append(links, pendingLink{from: pn, raw: raw})
					}
					if pd.Ethernet != "" {
						host, ok := hostByName[pd.Ethernet]
						if !ok {
							host = newNode(hosts, pd.Ethernet)
							host.str[PropIfname] = pd.Ethernet
							hostByName[pd.Ethernet] = host
						}
						pn.refs[dsa.PropEthernet] = []reference{{raw: pd.Ethernet, target: host}}
					}
				}
			}
			entry.Config = dsa.StructuredConfig{Node: swNode}
		}

		f.byName[sd.Name] = len(f.switches)
		f.switches = append(f.switches, entry)
	}

	for _, l := range links {
		l.from.refs[dsa.PropLink] = append(l.from.refs[dsa.PropLink], reference{
			raw:    l.raw,
			target: resolvePort(swNodes, l.raw),
		})
	}

	return f, nil
}

// PropIfname is the host interface name carried by host nodes.
const PropIfname = "ifname"

// resolvePort finds the port node named by "<switch>/<reg>". It returns
// nil if the reference does not resolve.
func resolvePort(switches map[string]*Node, raw string) *Node {
	swName, reg, ok := strings.Cut(raw, "/")
	if !ok {
		return nil
	}
	sw, ok := switches[swName]
	if !ok {
		return nil
	}
	reg = strings.TrimPrefix(reg, "port@")
	for _, c := range sw.children {
		if c.name != dsa.NodePorts {
			continue
		}
		for _, p := range c.children {
			if p.name == "port@"+reg {
				return p
			}
		}
	}
	return nil
}

func buildLegacy(ld *LegacyDesc) (dsa.LegacyConfig, error) {
	var cfg dsa.LegacyConfig
	if len(ld.Names) > dsa.MaxPorts {
		return cfg, fmt.Errorf("legacy: %d port names, at most %d", len(ld.Names), dsa.MaxPorts)
	}
	if len(ld.HostDevices) > dsa.MaxPorts {
		return cfg, fmt.Errorf("legacy: %d host devices, at most %d", len(ld.HostDevices), dsa.MaxPorts)
	}
	copy(cfg.PortNames[:], ld.Names)
	copy(cfg.HostDevices[:], ld.HostDevices)
	return cfg, nil
}

// Switches returns every described switch in file order.
func (f *Fabric) Switches() []SwitchEntry {
	return append([]SwitchEntry(nil), f.switches...)
}

// Switch returns the named switch.
func (f *Fabric) Switch(name string) (SwitchEntry, bool) {
	i, ok := f.byName[name]
	if !ok {
		return SwitchEntry{}, false
	}
	return f.switches[i], true
}

// HostDevices lists every host interface the description uplinks to,
// structured or legacy, sorted and without duplicates.
func (f *Fabric) HostDevices() []string {
	var names []string
	if hosts, ok := f.Root.Child("host"); ok {
		for _, n := range hosts.Children() {
			if name, ok := n.ReadString(PropIfname); ok {
				names = append(names, name)
			}
		}
	}
	for _, e := range f.switches {
		if lc, ok := e.Config.(dsa.LegacyConfig); ok {
			for _, name := range lc.HostDevices {
				if name != "" {
					names = append(names, name)
				}
			}
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}
