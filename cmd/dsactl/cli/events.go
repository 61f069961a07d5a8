package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/frobware/go-dsa/client"
	"github.com/frobware/go-dsa/server/api"
)

// EventsCmd shows the lifecycle journal, newest first.
type EventsCmd struct {
	OutputFlags
	Tree   *TreeID `name:"tree" help:"Only events for this tree."`
	Switch string  `name:"switch" help:"Only events for this switch."`
	Kind   string  `name:"kind" help:"Only events of this kind."`
	Limit  int     `name:"limit" short:"n" help:"Show at most this many events (0 for all)." default:"50"`
}

// Run executes the events command.
func (c *EventsCmd) Run(cli *CLI, ctx context.Context) error {
	if c.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	b, err := cli.Client()
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer b.Close()

	filter := api.EventFilter{Switch: c.Switch, Kind: c.Kind, Limit: c.Limit}
	if c.Tree != nil {
		id := c.Tree.Value
		filter.Tree = &id
	}

	events, err := b.Events(ctx, filter)
	if errors.Is(err, client.ErrNotSupported) {
		return fmt.Errorf("the daemon keeps no journal")
	}
	if err != nil {
		return err
	}

	if len(events) == 0 && c.Format() == OutputFormatTable {
		return cli.PrintOut("No events found\n")
	}

	output, err := FormatEvents(events, &c.OutputFlags)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}
