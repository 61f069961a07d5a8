package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/frobware/go-dsa/server"
)

// ServeCmd starts the gRPC daemon.
type ServeCmd struct {
	Description string `name:"description" help:"Fabric description file, overriding the config." type:"path"`
	Address     string `name:"address" help:"Additional TCP address for the gRPC server, overriding the config."`
}

// Run executes the serve command.
func (c *ServeCmd) Run(cli *CLI) error {
	logger, err := cli.LoggerFromConfig()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	appConfig, err := cli.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.Description != "" {
		appConfig.Fabric.Description = c.Description
	}
	if c.Address != "" {
		appConfig.Server.Address = c.Address
	}

	dirs, err := cli.RuntimeDirs()
	if err != nil {
		return err
	}

	cfg := server.RunConfig{
		Dirs:   dirs,
		Config: appConfig,
		Logger: logger,
	}

	// Create context that cancels on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return server.Run(ctx, cfg)
}
