// dsactl drives and inspects a DSA switch fabric.
package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-dsa/cmd/dsactl/cli"
)

func main() {
	c := cli.CLI{Out: os.Stdout}
	opts := append(cli.KongOptions(), kong.BindTo(context.Background(), (*context.Context)(nil)))
	kctx := kong.Parse(&c, opts...)
	kctx.FatalIfErrorf(kctx.Run(&c))
}
