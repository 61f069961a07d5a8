package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/frobware/go-dsa/server/api"
)

// AgeingCmd sets the FDB ageing time on every switch of a tree.
type AgeingCmd struct {
	Tree TreeID        `arg:"" name:"tree-id" help:"Tree ID (supports hex with 0x prefix)."`
	Time time.Duration `arg:"" name:"time" help:"Ageing time, e.g. 300s or 5m."`
}

// Run executes the ageing command.
func (c *AgeingCmd) Run(cli *CLI, ctx context.Context) error {
	if c.Time <= 0 {
		return fmt.Errorf("ageing time must be positive, got %s", c.Time)
	}

	b, err := cli.Client()
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer b.Close()

	if err := b.SetAgeingTime(ctx, c.Tree.Value, c.Time); err != nil {
		return err
	}
	return cli.PrintOutf("Tree %d ageing time %s\n", c.Tree.Value, c.Time)
}

// FDBCmd manages forwarding entries across a tree.
type FDBCmd struct {
	Add FDBAddCmd `cmd:"" help:"Add a forwarding entry."`
	Del FDBDelCmd `cmd:"" help:"Remove a forwarding entry."`
}

// FDBEntry names the entry and the port of the member that owns it.
type FDBEntry struct {
	Tree   TreeID  `arg:"" name:"tree-id" help:"Tree ID (supports hex with 0x prefix)."`
	Member uint32  `arg:"" name:"member" help:"Member index of the switch owning the port."`
	Port   int     `arg:"" name:"port" help:"Port on that switch."`
	Addr   MACAddr `arg:"" name:"mac" help:"EUI-48 address."`
	VID    uint16  `name:"vid" help:"VLAN ID." default:"0"`
}

func (e *FDBEntry) notify(cli *CLI, ctx context.Context, del bool) error {
	b, err := cli.Client()
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer b.Close()

	return b.Notify(ctx, api.NotifyRequest{
		Tree: e.Tree.Value,
		FDB: &api.FDBNotifyBody{
			Member: e.Member,
			Port:   e.Port,
			Addr:   e.Addr.String(),
			VID:    e.VID,
			Delete: del,
		},
	})
}

// FDBAddCmd adds a forwarding entry.
type FDBAddCmd struct {
	FDBEntry
}

// Run executes the fdb add command.
func (c *FDBAddCmd) Run(cli *CLI, ctx context.Context) error {
	return c.notify(cli, ctx, false)
}

// FDBDelCmd removes a forwarding entry.
type FDBDelCmd struct {
	FDBEntry
}

// Run executes the fdb del command.
func (c *FDBDelCmd) Run(cli *CLI, ctx context.Context) error {
	return c.notify(cli, ctx, true)
}
