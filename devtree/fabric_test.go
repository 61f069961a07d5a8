package devtree_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/devtree"
)

const pairTOML = `
[[switch]]
name   = "a"
driver = "sim"
ports  = 7
member = [2, 0]
tag    = "edsa"
  [[switch.port]]
  reg      = 4
  ethernet = "eth1"
  [[switch.port]]
  reg  = 6
  link = ["b/6"]

[[switch]]
name   = "b"
ports  = 7
member = [2, 1]
  [[switch.port]]
  reg   = 0
  label = "wan"
  [[switch.port]]
  reg  = 6
  link = ["b/port@6", "a/6"]
  [[switch.port]]
  reg      = 3
  disabled = true

[[switch]]
name  = "old"
ports = 4
  [switch.legacy]
  names        = ["lan1", "dsa", "", "cpu"]
  host_devices = ["", "", "", "eth2"]
`

const pairYAML = `
switch:
  - name: a
    driver: sim
    ports: 7
    member: [2, 0]
    tag: edsa
    port:
      - reg: 4
        ethernet: eth1
      - reg: 6
        link: ["b/6"]
  - name: b
    ports: 7
    member: [2, 1]
    port:
      - reg: 0
        label: wan
      - reg: 6
        link: ["b/port@6", "a/6"]
      - reg: 3
        disabled: true
  - name: old
    ports: 4
    legacy:
      names: [lan1, dsa, "", cpu]
      host_devices: ["", "", "", eth2]
`

func TestParse_TOMLAndYAMLAgree(t *testing.T) {
	fromTOML, err := devtree.Parse([]byte(pairTOML), devtree.FormatTOML)
	require.NoError(t, err)
	fromYAML, err := devtree.Parse([]byte(pairYAML), devtree.FormatYAML)
	require.NoError(t, err)

	summarize := func(f *devtree.Fabric) []string {
		var out []string
		for _, e := range f.Switches() {
			out = append(out, e.Name+"/"+e.Driver+"/"+string(e.Tag))
		}
		return out
	}
	assert.Equal(t, []string{"a/sim/edsa", "b//none", "old//none"}, summarize(fromTOML))
	assert.Equal(t, summarize(fromTOML), summarize(fromYAML))
}

func TestParse_StructuredNodes(t *testing.T) {
	f, err := devtree.Parse([]byte(pairTOML), devtree.FormatTOML)
	require.NoError(t, err)

	a, ok := f.Switch("a")
	require.True(t, ok)
	cfg, ok := a.Config.(dsa.StructuredConfig)
	require.True(t, ok, "got %T", a.Config)

	assert.Equal(t, "/fabric/a", cfg.Node.Path())
	tree, err := cfg.Node.ReadU32(dsa.PropMember, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tree)

	ports, ok := cfg.Node.Child(dsa.NodePorts)
	require.True(t, ok)
	children := ports.Children()
	require.Len(t, children, 2)

	uplink := children[0]
	assert.Equal(t, "/fabric/a/ports/port@4", uplink.Path())
	require.Equal(t, 1, uplink.References(dsa.PropEthernet))
	host, err := uplink.Reference(dsa.PropEthernet, 0)
	require.NoError(t, err)
	ifname, ok := host.ReadString(devtree.PropIfname)
	require.True(t, ok)
	assert.Equal(t, "eth1", ifname)

	link, err := children[1].Reference(dsa.PropLink, 0)
	require.NoError(t, err)
	assert.Equal(t, "/fabric/b/ports/port@6", link.Path())

	// Node handles compare by identity.
	b, _ := f.Switch("b")
	bPorts, _ := b.Config.(dsa.StructuredConfig).Node.Child(dsa.NodePorts)
	assert.True(t, link == bPorts.Children()[1], "link target is b's own port node")
	assert.Len(t, bPorts.Children(), 2, "disabled ports are dropped")
}

func TestParse_AbsentAndDangling(t *testing.T) {
	const desc = `
[[switch]]
name  = "x"
ports = 4
  [[switch.port]]
  reg  = 1
  link = ["nobody/1", "x/9"]
`
	f, err := devtree.Parse([]byte(desc), devtree.FormatTOML)
	require.NoError(t, err, "dangling references fail later, at completion")

	x, _ := f.Switch("x")
	node := x.Config.(dsa.StructuredConfig).Node
	_, err = node.ReadU32(dsa.PropMember, 0)
	assert.ErrorIs(t, err, dsa.ErrPropertyAbsent)

	ports, _ := node.Child(dsa.NodePorts)
	port := ports.Children()[0]
	assert.Equal(t, 2, port.References(dsa.PropLink))
	for i := range 2 {
		_, err := port.Reference(dsa.PropLink, i)
		assert.Error(t, err)
	}
	_, err = port.Reference(dsa.PropLink, 2)
	assert.Error(t, err)
}

func TestParse_Legacy(t *testing.T) {
	f, err := devtree.Parse([]byte(pairTOML), devtree.FormatTOML)
	require.NoError(t, err)

	old, ok := f.Switch("old")
	require.True(t, ok)
	cfg, ok := old.Config.(dsa.LegacyConfig)
	require.True(t, ok, "got %T", old.Config)
	assert.Equal(t, "lan1", cfg.PortNames[0])
	assert.Equal(t, dsa.PortNameUplink, cfg.PortNames[3])
	assert.Equal(t, "eth2", cfg.HostDevices[3])
}

func TestFabric_HostDevices(t *testing.T) {
	f, err := devtree.Parse([]byte(pairTOML), devtree.FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth1", "eth2"}, f.HostDevices())

	empty, err := devtree.Build(devtree.Description{})
	require.NoError(t, err)
	assert.Empty(t, empty.HostDevices())
	assert.Empty(t, empty.Switches())
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"missing name":   "[[switch]]\nports = 4\n",
		"duplicate name": "[[switch]]\nname = \"a\"\nports = 4\n[[switch]]\nname = \"a\"\nports = 4\n",
		"reserved name":  "[[switch]]\nname = \"host\"\nports = 4\n",
		"slash in name":  "[[switch]]\nname = \"a/b\"\nports = 4\n",
		"too many ports": "[[switch]]\nname = \"a\"\nports = 13\n",
		"unknown tag":    "[[switch]]\nname = \"a\"\nports = 4\ntag = \"ocelot\"\n",
		"unknown key":    "[[switch]]\nname = \"a\"\nports = 4\ncolour = \"red\"\n",
		"legacy and member": "[[switch]]\nname = \"a\"\nports = 4\nmember = [0, 0]\n" +
			"[switch.legacy]\nnames = [\"lan1\"]\n",
	}
	for name, desc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := devtree.Parse([]byte(desc), devtree.FormatTOML)
			assert.Error(t, err)
		})
	}
}

func TestParse_RejectsRepeatedPortReg(t *testing.T) {
	const desc = `
[[switch]]
name  = "a"
ports = 4
  [[switch.port]]
  reg   = 1
  label = "lan1"
  [[switch.port]]
  reg   = 1
  label = "lan2"
`
	_, err := devtree.Parse([]byte(desc), devtree.FormatTOML)
	assert.ErrorContains(t, err, `switch "a": port reg 1 described twice`)

	const disabled = `
[[switch]]
name  = "a"
ports = 4
  [[switch.port]]
  reg      = 2
  disabled = true
  [[switch.port]]
  reg = 2
`
	_, err = devtree.Parse([]byte(disabled), devtree.FormatTOML)
	assert.ErrorContains(t, err, "port reg 2 described twice")
}

func TestLoad_PicksFormatFromExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fabric.yml")
	require.NoError(t, os.WriteFile(path, []byte(pairYAML), 0o644))

	f, err := devtree.Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Switches(), 3)

	assert.Equal(t, devtree.FormatYAML, devtree.FormatFromPath("x.YAML"))
	assert.Equal(t, devtree.FormatTOML, devtree.FormatFromPath("x.conf"))

	_, err = devtree.Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
