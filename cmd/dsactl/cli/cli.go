// Package cli provides the Kong-based command-line interface for dsactl.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-dsa/client"
	"github.com/frobware/go-dsa/config"
	"github.com/frobware/go-dsa/logging"
)

// CLI is the root command structure for dsactl.
type CLI struct {
	Config     string `name:"config" help:"Config file path." default:"${default_config_path}"`
	Log        string `name:"log" help:"Log spec (e.g., 'info,manager=debug')." env:"DSA_LOG"`
	Remote     string `name:"remote" short:"r" help:"Daemon endpoint (unix:///path, /path or host:port)." default:"${default_socket_path}"`
	RuntimeDir string `name:"runtime-dir" help:"Base runtime directory for serve." default:"${default_runtime_dir}"`

	// Out receives command output. Nil means stdout.
	Out io.Writer `kong:"-"`

	Serve    ServeCmd    `cmd:"" help:"Start the gRPC daemon."`
	Probe    ProbeCmd    `cmd:"" help:"Register described switches."`
	Remove   RemoveCmd   `cmd:"" help:"Unregister switches."`
	List     ListCmd     `cmd:"" help:"List trees."`
	Get      GetCmd      `cmd:"" help:"Show one tree."`
	Events   EventsCmd   `cmd:"" help:"Show the lifecycle journal."`
	Ageing   AgeingCmd   `cmd:"" help:"Set the FDB ageing time of a tree."`
	FDB      FDBCmd      `cmd:"" name:"fdb" help:"Add or remove a forwarding entry on every switch of a tree."`
	Describe DescribeCmd `cmd:"" help:"Validate a fabric description and list its switches."`
	Simulate SimulateCmd `cmd:"" help:"Probe a fabric description in process and show the resulting trees."`
}

// KongOptions returns the Kong configuration options for the CLI.
func KongOptions() []kong.Option {
	dirs := config.DefaultRuntimeDirs()
	return []kong.Option{
		kong.Name("dsactl"),
		kong.Description("Distributed switch fabric control."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.TypeMapper(reflect.TypeOf(TreeID{}), treeIDMapper()),
		kong.TypeMapper(reflect.TypeOf(MACAddr{}), macAddrMapper()),
		kong.Vars{
			"default_runtime_dir": dirs.Base(),
			"default_socket_path": dirs.SocketPath(),
			"default_config_path": config.DefaultConfigPath,
		},
	}
}

// LoadConfig loads the configuration from the config file path.
func (c *CLI) LoadConfig() (config.Config, error) {
	return config.Load(c.Config)
}

// RuntimeDirs returns the runtime directories rooted at --runtime-dir.
func (c *CLI) RuntimeDirs() (config.RuntimeDirs, error) {
	return config.NewRuntimeDirs(c.RuntimeDir)
}

// Logger creates a logger for CLI commands.
// CLI commands default to WARN level for quieter output.
// Use LoggerFromConfig for long-running services like serve.
func (c *CLI) Logger() (*slog.Logger, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}

	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	// CLI commands default to warn unless --log is specified
	spec := c.Log
	if spec == "" {
		spec = "warn"
	}

	opts := logging.Options{
		CLISpec:    spec,
		ConfigSpec: cfg.Logging.ToSpec(),
		Format:     format,
		Output:     os.Stderr,
	}

	return logging.New(opts)
}

// LoggerFromConfig creates a logger using config file settings.
// Used by long-running services (serve) where INFO level is appropriate.
// Output goes to stdout for daemon/container log collection.
func (c *CLI) LoggerFromConfig() (*slog.Logger, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}

	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	opts := logging.Options{
		CLISpec:    c.Log,
		ConfigSpec: cfg.Logging.ToSpec(),
		Format:     format,
		Output:     os.Stdout,
	}

	return logging.New(opts)
}

// Client connects to the daemon at --remote.
// The returned client must be closed when no longer needed.
func (c *CLI) Client() (*client.Client, error) {
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}
	return client.Dial(c.Remote, client.WithLogger(logger))
}

func (c *CLI) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// WriteOut writes b in full to the output. A short write without an
// error is reported as io.ErrShortWrite.
func (c *CLI) WriteOut(b []byte) error {
	n, err := c.out().Write(b)
	if err != nil {
		return err
	}
	if n < len(b) {
		return io.ErrShortWrite
	}
	return nil
}

// PrintOut writes s to the output.
func (c *CLI) PrintOut(s string) error {
	return c.WriteOut([]byte(s))
}

// PrintOutf formats and writes to the output.
func (c *CLI) PrintOutf(format string, args ...any) error {
	return c.PrintOut(fmt.Sprintf(format, args...))
}
