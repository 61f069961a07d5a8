package client

import (
	"io"
	"log/slog"

	"github.com/frobware/go-dsa/config"
)

// DefaultSocketPath returns the default Unix socket path for connecting to a dsa daemon.
// This is derived from the default runtime directories.
func DefaultSocketPath() string {
	return config.DefaultRuntimeDirs().SocketPath()
}

// Option configures client behaviour.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	devices []string
	absent  bool
}

// WithLogger sets the logger for client operations.
// If not specified, a no-op logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHostDevices adds simulated host devices for Open, on top of the
// ones the description uplinks to. It has no effect on Dial.
func WithHostDevices(names ...string) Option {
	return func(o *options) { o.devices = append(o.devices, names...) }
}

// WithoutDescribedDevices stops Open from creating the host devices the
// description uplinks to, so probes defer until they are added. It has
// no effect on Dial.
func WithoutDescribedDevices() Option {
	return func(o *options) { o.absent = true }
}

func newOptions(opts []Option) *options {
	o := &options{logger: discardLogger()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Dial connects to a dsa daemon at the specified address.
// The address can be:
//   - "host:port" for TCP connections
//   - "unix:///path/to/socket" for Unix socket connections
//   - "/path/to/socket" for Unix socket connections (shorthand)
//
// The returned client must be closed when no longer needed.
func Dial(address string, opts ...Option) (*Client, error) {
	o := newOptions(opts)
	return newRemote(address, o.logger)
}
