package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/frobware/go-dsa/client"
)

// GetCmd shows one tree.
type GetCmd struct {
	OutputFlags
	Tree TreeID `arg:"" name:"tree-id" help:"Tree ID (supports hex with 0x prefix)."`
}

// Run executes the get command.
func (c *GetCmd) Run(cli *CLI, ctx context.Context) error {
	b, err := cli.Client()
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer b.Close()

	t, err := b.Tree(ctx, c.Tree.Value)
	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("tree %d not found", c.Tree.Value)
	}
	if err != nil {
		return err
	}

	output, err := FormatTree(t, &c.OutputFlags)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}
