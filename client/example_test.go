package client_test

import (
	"context"
	"fmt"
	"log"

	"github.com/frobware/go-dsa/client"
	"github.com/frobware/go-dsa/devtree"
)

func ExampleDial() {
	c, err := client.Dial(client.DefaultSocketPath())
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	trees, err := c.Trees(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	for _, t := range trees {
		fmt.Printf("Tree %d: %s via %s\n", t.ID, t.State, t.Master)
	}
}

func ExampleOpen() {
	fabric, err := devtree.Parse([]byte(`
[[switch]]
name   = "sw0"
ports  = 4
member = [0, 0]
  [[switch.port]]
  reg   = 0
  label = "lan1"
  [[switch.port]]
  reg      = 3
  ethernet = "eth0"
`), devtree.FormatTOML)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	c, err := client.Open(ctx, fabric)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	res, err := c.Probe(ctx, "sw0")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Switch, res.Outcome)
	// Output: sw0 activated
}
