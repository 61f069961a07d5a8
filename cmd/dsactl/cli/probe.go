package cli

import (
	"context"
	"fmt"

	"github.com/frobware/go-dsa/server/api"
)

// ProbeCmd registers described switches with the daemon.
type ProbeCmd struct {
	OutputFlags
	Switches []string `arg:"" name:"switch" help:"Switch names from the fabric description."`
}

// Run executes the probe command. Every switch is probed even when an
// earlier one fails; the first error is returned.
func (c *ProbeCmd) Run(cli *CLI, ctx context.Context) error {
	b, err := cli.Client()
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer b.Close()

	var (
		results  []api.ProbeResult
		firstErr error
	)
	for _, name := range c.Switches {
		res, err := b.Probe(ctx, name)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("probe %s: %w", name, err)
			}
			continue
		}
		results = append(results, res)
	}

	if len(results) > 0 {
		output, err := FormatProbeResults(results, &c.OutputFlags)
		if err != nil {
			return err
		}
		if err := cli.PrintOut(output); err != nil {
			return err
		}
	}
	return firstErr
}

// RemoveCmd unregisters switches.
type RemoveCmd struct {
	Switches []string `arg:"" name:"switch" help:"Switch names to unregister."`
}

// Run executes the remove command.
func (c *RemoveCmd) Run(cli *CLI, ctx context.Context) error {
	b, err := cli.Client()
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer b.Close()

	for _, name := range c.Switches {
		if err := b.Remove(ctx, name); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
		if err := cli.PrintOutf("Removed %s\n", name); err != nil {
			return err
		}
	}
	return nil
}
