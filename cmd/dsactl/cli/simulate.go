package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/frobware/go-dsa/client"
	"github.com/frobware/go-dsa/server/api"
)

// SimulateCmd probes a description against a simulated host in
// process.
type SimulateCmd struct {
	OutputFlags
	Path      string   `arg:"" optional:"" name:"description" help:"Fabric description file (default: the configured one)." type:"path"`
	Switches  []string `name:"switch" help:"Probe only these switches, in this order (default: all, in description order)."`
	Devices   []string `name:"device" help:"Extra host devices to create."`
	NoDevices bool     `name:"no-devices" help:"Do not create the host devices the description references."`
}

// Simulation is the simulate result.
type Simulation struct {
	Probes []api.ProbeResult `json:"probes"`
	Trees  []api.Tree        `json:"trees"`
}

// Run executes the simulate command.
func (c *SimulateCmd) Run(cli *CLI, ctx context.Context) error {
	fabric, err := cli.loadFabric(c.Path)
	if err != nil {
		return err
	}
	logger, err := cli.Logger()
	if err != nil {
		return err
	}

	opts := []client.Option{client.WithLogger(logger), client.WithHostDevices(c.Devices...)}
	if c.NoDevices {
		opts = append(opts, client.WithoutDescribedDevices())
	}
	b, err := client.Open(ctx, fabric, opts...)
	if err != nil {
		return fmt.Errorf("open simulation: %w", err)
	}
	defer b.Close()

	names := c.Switches
	if len(names) == 0 {
		for _, entry := range fabric.Switches() {
			names = append(names, entry.Name)
		}
	}

	sim := Simulation{Probes: []api.ProbeResult{}}
	for _, name := range names {
		res, err := b.Probe(ctx, name)
		if err != nil {
			res = api.ProbeResult{Switch: name, Outcome: "failed", Detail: err.Error()}
		}
		sim.Probes = append(sim.Probes, res)
	}
	if sim.Trees, err = b.Trees(ctx); err != nil {
		return err
	}

	output, err := FormatSimulation(sim, &c.OutputFlags)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}

// FormatSimulation formats a simulate result according to the output
// flags.
func FormatSimulation(sim Simulation, flags *OutputFlags) (string, error) {
	switch flags.Format() {
	case OutputFormatJSON:
		return formatJSON(sim)
	case OutputFormatYAML:
		return formatYAML(sim)
	}

	var b strings.Builder
	probes, err := FormatProbeResults(sim.Probes, flags)
	if err != nil {
		return "", err
	}
	b.WriteString(probes)
	b.WriteString("\n")
	if len(sim.Trees) == 0 {
		b.WriteString("No trees found\n")
		return b.String(), nil
	}
	trees, err := FormatTreeList(sim.Trees, flags)
	if err != nil {
		return "", err
	}
	b.WriteString(trees)
	return b.String(), nil
}
