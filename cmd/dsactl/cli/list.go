package cli

import (
	"context"
	"fmt"
)

// ListCmd lists the trees the daemon knows.
type ListCmd struct {
	OutputFlags
}

// Run executes the list command.
func (c *ListCmd) Run(cli *CLI, ctx context.Context) error {
	b, err := cli.Client()
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer b.Close()

	trees, err := b.Trees(ctx)
	if err != nil {
		return err
	}

	if len(trees) == 0 && c.Format() == OutputFormatTable {
		return cli.PrintOut("No trees found\n")
	}

	output, err := FormatTreeList(trees, &c.OutputFlags)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}
