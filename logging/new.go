package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvVar is the environment variable holding a log spec.
const EnvVar = "DSA_LOG"

// Format is the log output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat parses "text" or "json". Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format: %q", s)
}

// Options configures New.
type Options struct {
	// CLISpec, EnvSpec and ConfigSpec are log specs in decreasing
	// order of precedence. The first non-empty one wins.
	CLISpec    string
	EnvSpec    string
	ConfigSpec string

	Format Format

	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns a logger filtered by the winning spec.
func New(opts Options) (*slog.Logger, error) {
	var specStr string
	for _, s := range []string{opts.CLISpec, opts.EnvSpec, opts.ConfigSpec} {
		if s != "" {
			specStr = s
			break
		}
	}

	spec, err := ParseSpec(specStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log spec: %w", err)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	// The inner handler accepts everything; filtering happens in
	// filteringHandler.
	handlerOpts := &slog.HandlerOptions{Level: LevelTrace.ToSlog()}
	var inner slog.Handler
	if opts.Format == FormatJSON {
		inner = slog.NewJSONHandler(out, handlerOpts)
	} else {
		inner = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(NewFilteringHandler(inner, &spec)), nil
}

// FromEnv returns a logger configured from DSA_LOG.
func FromEnv() (*slog.Logger, error) {
	return New(Options{EnvSpec: os.Getenv(EnvVar)})
}
