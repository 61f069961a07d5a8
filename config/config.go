// Package config handles dsa daemon configuration.
//
// Configuration is loaded with overlay semantics:
//
//  1. Start with built-in defaults (embedded via go:embed from default.toml)
//  2. Overlay with config file values (if file exists)
//  3. CLI flags and environment variables override at runtime (handled by CLI layer)
//
// The TOML decoder only sets fields present in the file, leaving
// unspecified fields at their default values. If the config file exists
// but is invalid, Load returns an error rather than silently falling
// back to defaults.
package config

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed default.toml
var defaultConfigTOML string

const (
	// DefaultConfigPath is the default path to the dsa config file.
	DefaultConfigPath = "/etc/dsa/dsa.toml"
)

// Config is the top-level dsa configuration.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Fabric  FabricConfig  `toml:"fabric"`
	Journal JournalConfig `toml:"journal"`
	Server  ServerConfig  `toml:"server"`
}

// LoggingConfig controls logging behaviour.
type LoggingConfig struct {
	// Level is the log spec (e.g., "info" or "info,manager=debug").
	Level string `toml:"level"`
	// Format is the output format: "text" or "json".
	Format string `toml:"format"`
	// Components provides an alternative way to specify per-component levels.
	Components map[string]string `toml:"components"`
}

// ToSpec converts the LoggingConfig to a log spec string.
// If Level is set, it takes precedence. Otherwise, Components are used.
func (c *LoggingConfig) ToSpec() string {
	if c.Level != "" {
		return c.Level
	}
	if len(c.Components) == 0 {
		return ""
	}

	parts := []string{"info"}
	for _, component := range slices.Sorted(maps.Keys(c.Components)) {
		parts = append(parts, component+"="+c.Components[component])
	}
	return strings.Join(parts, ",")
}

// Host backends.
const (
	HostNetlink = "netlink"
	HostSim     = "sim"
)

// FabricConfig controls which switches the daemon drives.
type FabricConfig struct {
	Description   string   `toml:"description"`
	RetryInterval Duration `toml:"retry_interval"`
	DefaultDriver string   `toml:"default_driver"`
	Host          string   `toml:"host"`
	// Netns is the network namespace the netlink host runs in. Empty
	// means the daemon's own.
	Netns string `toml:"netns"`
}

// JournalConfig controls the lifecycle journal.
type JournalConfig struct {
	Keep int `toml:"keep"`
}

// ServerConfig controls the daemon's listeners.
type ServerConfig struct {
	Address        string `toml:"address"`
	MetricsAddress string `toml:"metrics_address"`
}

// Duration is a time.Duration written as a string ("2s", "500ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns the default configuration from the embedded default.toml.
func DefaultConfig() Config {
	var cfg Config
	if _, err := toml.Decode(defaultConfigTOML, &cfg); err != nil {
		// default.toml is embedded at build time.
		panic(fmt.Sprintf("config: bad embedded defaults: %v", err))
	}
	return cfg
}

// Load reads configuration from a file path with overlay semantics.
//
// Behaviour:
//   - File missing: returns default configuration (no error)
//   - File exists and valid: overlays file values onto defaults
//   - File exists but invalid: returns error (fail fast)
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return cfg, fmt.Errorf("config file %s: unknown key %q", path, undec[0].String())
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Fabric.RetryInterval.Duration <= 0 {
		return fmt.Errorf("fabric.retry_interval must be positive, got %s", c.Fabric.RetryInterval)
	}
	switch c.Fabric.Host {
	case HostNetlink, HostSim:
	default:
		return fmt.Errorf("fabric.host must be %q or %q, got %q", HostNetlink, HostSim, c.Fabric.Host)
	}
	if c.Fabric.Netns != "" {
		if c.Fabric.Host != HostNetlink {
			return fmt.Errorf("fabric.netns needs fabric.host %q, got %q", HostNetlink, c.Fabric.Host)
		}
		if !filepath.IsAbs(c.Fabric.Netns) {
			return fmt.Errorf("fabric.netns must be an absolute path, got %q", c.Fabric.Netns)
		}
	}
	if c.Journal.Keep < 0 {
		return fmt.Errorf("journal.keep must not be negative, got %d", c.Journal.Keep)
	}
	return nil
}
