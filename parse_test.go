package dsa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/devtree"
)

func configOf(t *testing.T, desc, name string) dsa.SwitchConfig {
	t.Helper()
	f, err := devtree.Parse([]byte(desc), devtree.FormatTOML)
	require.NoError(t, err)
	entry, ok := f.Switch(name)
	require.True(t, ok)
	return entry.Config
}

const structured = `
[[switch]]
name   = "sw"
ports  = 7
member = [2, 1]
  [[switch.port]]
  reg   = 0
  label = "lan1"
  [[switch.port]]
  reg      = 5
  ethernet = "eth0"
  [[switch.port]]
  reg  = 6
  link = ["sw/0"]
`

func TestConfigure_Structured(t *testing.T) {
	sw := newSwitchN(t, 7)
	m, err := sw.Configure(configOf(t, structured, "sw"))
	require.NoError(t, err)

	assert.Equal(t, dsa.Membership{Tree: 2, Index: 1}, m)
	assert.Equal(t, "2/1", m.String())
	assert.Equal(t, dsa.RoleUser, sw.Ports[0].Role())
	assert.Equal(t, "lan1", sw.Ports[0].Label())
	assert.Equal(t, dsa.RoleUplink, sw.Ports[5].Role())
	assert.Equal(t, dsa.RoleLink, sw.Ports[6].Role())
	assert.Equal(t, dsa.RoleUnused, sw.Ports[1].Role())
	assert.Equal(t, "[0,6]", sw.ConfiguredPorts.String(), "uplink ports are not enabled")
}

func TestConfigure_StructuredReservedLabels(t *testing.T) {
	const desc = `
[[switch]]
name  = "sw"
ports = 4
  [[switch.port]]
  reg   = 0
  label = "lan1"
  [[switch.port]]
  reg   = 2
  label = "dsa"
  [[switch.port]]
  reg   = 3
  label = "cpu"
`
	sw := newSwitchN(t, 4)
	_, err := sw.Configure(configOf(t, desc, "sw"))
	require.NoError(t, err)

	assert.Equal(t, dsa.RoleUser, sw.Ports[0].Role())
	assert.Equal(t, dsa.RoleLink, sw.Ports[2].Role())
	assert.Equal(t, dsa.RoleUplink, sw.Ports[3].Role())
	assert.Equal(t, "[0,2]", sw.ConfiguredPorts.String())
}

func TestConfigure_StructuredDefaultsToTreeZero(t *testing.T) {
	const desc = `
[[switch]]
name  = "sw"
ports = 4
  [[switch.port]]
  reg = 1
`
	sw := newSwitchN(t, 4)
	m, err := sw.Configure(configOf(t, desc, "sw"))
	require.NoError(t, err)
	assert.Equal(t, dsa.Membership{}, m)
}

func TestConfigure_StructuredRejects(t *testing.T) {
	tests := []struct {
		name  string
		desc  string
		field string
	}{
		{
			name:  "member index out of range",
			field: dsa.PropMember,
			desc: `
[[switch]]
name   = "sw"
ports  = 4
member = [0, 4]
  [[switch.port]]
  reg = 0
`,
		},
		{
			name:  "member without index",
			field: dsa.PropMember,
			desc: `
[[switch]]
name   = "sw"
ports  = 4
member = [0]
  [[switch.port]]
  reg = 0
`,
		},
		{
			name:  "reg beyond port count",
			field: dsa.PropReg,
			desc: `
[[switch]]
name  = "sw"
ports = 4
  [[switch.port]]
  reg = 4
`,
		},
		{
			name:  "port without reg",
			field: dsa.PropReg,
			desc: `
[[switch]]
name  = "sw"
ports = 4
  [[switch.port]]
  label = "x"
`,
		},
		{
			name:  "no ports child",
			field: dsa.NodePorts,
			desc: `
[[switch]]
name  = "sw"
ports = 4
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := newSwitchN(t, 4)
			_, err := sw.Configure(configOf(t, tt.desc, "sw"))
			var verr *dsa.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestConfigure_Legacy(t *testing.T) {
	sw := newSwitchN(t, 5)
	cfg := dsa.LegacyConfig{
		PortNames:   [dsa.MaxPorts]string{"lan1", "", dsa.PortNameLink, "lan2", dsa.PortNameUplink},
		HostDevices: [dsa.MaxPorts]string{4: "eth0"},
	}
	m, err := sw.Configure(cfg)
	require.NoError(t, err)

	assert.Equal(t, dsa.Membership{}, m)
	assert.Equal(t, "[0,2,3]", sw.ConfiguredPorts.String())
	assert.Equal(t, "eth0", sw.Ports[4].HostDevice)
	assert.Equal(t, dsa.RoleLink, sw.Ports[2].Role())
	assert.Equal(t, dsa.RoleUnused, sw.Ports[1].Role())

	_, err = sw.Configure(&cfg)
	assert.NoError(t, err, "pointer variants are accepted")
}

func TestConfigure_LegacyRejects(t *testing.T) {
	sw := newSwitchN(t, 2)

	var verr *dsa.ValidationError
	_, err := sw.Configure(dsa.LegacyConfig{PortNames: [dsa.MaxPorts]string{3: "lan4"}})
	require.ErrorAs(t, err, &verr, "name beyond the port count")

	_, err = sw.Configure(dsa.LegacyConfig{})
	require.ErrorAs(t, err, &verr, "no ports at all")
	assert.Equal(t, "ports", verr.Field)
}

func TestConfigure_ResetsPreviousDescription(t *testing.T) {
	sw := newSwitchN(t, 7)
	_, err := sw.Configure(configOf(t, structured, "sw"))
	require.NoError(t, err)

	_, err = sw.Configure(dsa.LegacyConfig{PortNames: [dsa.MaxPorts]string{"only"}})
	require.NoError(t, err)
	assert.Nil(t, sw.Ports[5].Node)
	assert.Equal(t, "[0]", sw.ConfiguredPorts.String())
}

func newSwitchN(t *testing.T, ports int) *dsa.Switch {
	t.Helper()
	sw, err := dsa.NewSwitch("sw", nopOps{}, ports)
	require.NoError(t, err)
	return sw
}
