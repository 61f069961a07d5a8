package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/devtree"
	"github.com/frobware/go-dsa/driver/sim"
)

// DescribeCmd validates a fabric description without a daemon.
type DescribeCmd struct {
	OutputFlags
	Path string `arg:"" optional:"" name:"description" help:"Fabric description file (default: the configured one)." type:"path"`
}

// SwitchSummary is what a description asks of one switch.
type SwitchSummary struct {
	Name   string `json:"name"`
	Driver string `json:"driver,omitempty"`
	Ports  int    `json:"ports"`
	Tree   uint32 `json:"tree"`
	Member uint32 `json:"member"`
	Legacy bool   `json:"legacy"`
	User   []int  `json:"user"`
	Link   []int  `json:"link"`
	Uplink []int  `json:"uplink"`
	Error  string `json:"error,omitempty"`
}

// Description is the describe result.
type Description struct {
	Switches    []SwitchSummary `json:"switches"`
	HostDevices []string        `json:"host_devices"`
}

// Run executes the describe command.
func (c *DescribeCmd) Run(cli *CLI) error {
	fabric, err := cli.loadFabric(c.Path)
	if err != nil {
		return err
	}
	desc := Describe(fabric)

	output, err := FormatDescription(desc, &c.OutputFlags)
	if err != nil {
		return err
	}
	if err := cli.PrintOut(output); err != nil {
		return err
	}
	for _, s := range desc.Switches {
		if s.Error != "" {
			return fmt.Errorf("description has invalid switches")
		}
	}
	return nil
}

// loadFabric loads path, or the configured description when path is
// empty.
func (c *CLI) loadFabric(path string) (*devtree.Fabric, error) {
	if path == "" {
		cfg, err := c.LoadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Fabric.Description
	}
	if path == "" {
		return nil, fmt.Errorf("no fabric description given and none configured")
	}
	return devtree.Load(path)
}

// Describe configures a detached switch for every entry of fabric and
// reports what each one asks for. Nothing is registered.
func Describe(fabric *devtree.Fabric) Description {
	logger := slog.New(slog.DiscardHandler)
	desc := Description{
		Switches:    []SwitchSummary{},
		HostDevices: fabric.HostDevices(),
	}
	for _, entry := range fabric.Switches() {
		summary := SwitchSummary{
			Name:   entry.Name,
			Driver: entry.Driver,
			Ports:  entry.NumPorts,
			User:   []int{},
			Link:   []int{},
			Uplink: []int{},
		}
		_, summary.Legacy = entry.Config.(dsa.LegacyConfig)

		sw, err := dsa.NewSwitch(entry.Name, sim.NewSwitch(entry.Tag, logger), entry.NumPorts)
		if err != nil {
			summary.Error = err.Error()
			desc.Switches = append(desc.Switches, summary)
			continue
		}
		m, err := sw.Configure(entry.Config)
		if err != nil {
			summary.Error = err.Error()
			desc.Switches = append(desc.Switches, summary)
			continue
		}
		summary.Tree = uint32(m.Tree)
		summary.Member = m.Index
		for i := range sw.Ports {
			switch sw.Ports[i].Role() {
			case dsa.RoleUser:
				summary.User = append(summary.User, i)
			case dsa.RoleLink:
				summary.Link = append(summary.Link, i)
			case dsa.RoleUplink:
				summary.Uplink = append(summary.Uplink, i)
			}
		}
		desc.Switches = append(desc.Switches, summary)
	}
	return desc
}

// FormatDescription formats a describe result according to the output
// flags.
func FormatDescription(desc Description, flags *OutputFlags) (string, error) {
	switch flags.Format() {
	case OutputFormatJSON:
		return formatJSON(desc)
	case OutputFormatYAML:
		return formatYAML(desc)
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "%-12s %-12s %-6s %-8s %-10s %-10s %-10s %s\n", "SWITCH", "DRIVER", "PORTS", "MEMBER", "USER", "LINK", "UPLINK", "STATUS")
		for _, s := range desc.Switches {
			status := "ok"
			if s.Error != "" {
				status = s.Error
			}
			fmt.Fprintf(&b, "%-12s %-12s %-6d %-8s %-10s %-10s %-10s %s\n",
				s.Name, dash(s.Driver), s.Ports, fmt.Sprintf("%d/%d", s.Tree, s.Member),
				ints(s.User), ints(s.Link), ints(s.Uplink), status)
		}
		fmt.Fprintf(&b, "\nHost devices: %s\n", dash(strings.Join(desc.HostDevices, ",")))
		return b.String(), nil
	}
}
