// Package server implements the dsa gRPC daemon.
//
// The daemon owns the fabric description and one allocated switch per
// described entry. Probe and Remove are the bind and unbind events a
// bus would deliver; the daemon turns them into manager registrations.
// A registration that fails because the uplink device has not appeared
// yet is remembered and retried on a timer under the same attempt id,
// so every journal entry of one logical probe can be correlated.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/config"
	"github.com/frobware/go-dsa/devtree"
	"github.com/frobware/go-dsa/driver/sim"
	"github.com/frobware/go-dsa/interpreter"
	"github.com/frobware/go-dsa/interpreter/hostnet"
	"github.com/frobware/go-dsa/interpreter/store/sqlite"
	"github.com/frobware/go-dsa/lock"
	"github.com/frobware/go-dsa/manager"
	"github.com/frobware/go-dsa/metrics"
	"github.com/frobware/go-dsa/server/api"
	"github.com/frobware/go-dsa/tagger"
)

// ErrUnknownSwitch is returned for a switch the fabric description
// does not name.
var ErrUnknownSwitch = errors.New("switch not described")

// Driver allocates the driver operations for a described switch.
type Driver func(entry devtree.SwitchEntry, logger *slog.Logger) (dsa.SwitchOps, error)

// SimDriver backs a switch with an in-process simulated chip.
func SimDriver(entry devtree.SwitchEntry, logger *slog.Logger) (dsa.SwitchOps, error) {
	return sim.NewSwitch(entry.Tag, logger), nil
}

// Server implements api.FabricServer.
type Server struct {
	mgr           *manager.Manager
	fabric        *devtree.Fabric
	journal       interpreter.Journal
	drivers       map[string]Driver
	defaultDriver string
	logger        *slog.Logger

	// opCounter provides monotonic operation IDs for request tracing.
	opCounter atomic.Uint64

	mu       sync.Mutex
	switches map[string]*dsa.Switch
	// deferred maps a switch waiting for its uplink to the attempt id
	// of the probe that deferred it.
	deferred map[string]string
}

var _ api.FabricServer = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithJournal serves Events from j.
func WithJournal(j interpreter.Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithDriver makes d available under name.
func WithDriver(name string, d Driver) Option {
	return func(s *Server) { s.drivers[name] = d }
}

// WithDefaultDriver names the driver used by entries that name none.
func WithDefaultDriver(name string) Option {
	return func(s *Server) { s.defaultDriver = name }
}

// New creates a server for the switches fabric describes. The "sim"
// driver is always available.
func New(mgr *manager.Manager, fabric *devtree.Fabric, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mgr:           mgr,
		fabric:        fabric,
		drivers:       map[string]Driver{"sim": SimDriver},
		defaultDriver: "sim",
		logger:        manager.WithOpIDHandler(logger).With("component", "server"),
		switches:      make(map[string]*dsa.Switch),
		deferred:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunConfig configures the daemon.
type RunConfig struct {
	Dirs   config.RuntimeDirs
	Config config.Config
	Logger *slog.Logger
	// Fabric, if set, is used instead of loading
	// Config.Fabric.Description.
	Fabric *devtree.Fabric
	// Host, if set, is used instead of the backend Config.Fabric.Host
	// names.
	Host interpreter.HostOperations
}

// Run starts the dsa daemon and blocks until ctx is cancelled or a
// listener fails.
func Run(ctx context.Context, cfg RunConfig) error {
	dirs := cfg.Dirs
	appCfg := cfg.Config

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	if err := dirs.EnsureDirectories(); err != nil {
		return fmt.Errorf("runtime directory setup failed: %w", err)
	}

	fabric, err := loadFabric(cfg, logger)
	if err != nil {
		return err
	}

	journal, err := sqlite.New(ctx, dirs.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to open journal at %s: %w", dirs.DBPath(), err)
	}
	defer journal.Close()
	if appCfg.Journal.Keep > 0 {
		if _, err := journal.Prune(ctx, appCfg.Journal.Keep); err != nil {
			return err
		}
	}

	host := cfg.Host
	if host == nil {
		host = newHost(appCfg.Fabric, fabric, logger)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mgr := manager.New(host, tagger.New(), logger,
		manager.WithJournal(journal),
		manager.WithObserver(metrics.New(reg)),
		manager.WithLock(lock.New(dirs.Lock())),
	)
	srv := New(mgr, fabric, logger,
		WithJournal(journal),
		WithDefaultDriver(appCfg.Fabric.DefaultDriver),
	)

	g, gctx := errgroup.WithContext(ctx)

	if addr := appCfg.Server.MetricsAddress; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("metrics listen on %s: %w", addr, err)
		}
		httpServer := &http.Server{Handler: metricsMux(reg), ReadHeaderTimeout: 10 * time.Second}
		logger.Info("metrics HTTP server listening", "address", ln.Addr().String())
		g.Go(func() error {
			if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return httpServer.Close()
		})
	} else {
		logger.Info("metrics HTTP server disabled")
	}

	srv.ProbeAll(gctx)

	g.Go(func() error {
		srv.retryDeferred(gctx, appCfg.Fabric.RetryInterval.Duration)
		return nil
	})
	g.Go(func() error {
		return srv.serve(gctx, dirs.SocketPath(), appCfg.Server.Address)
	})
	return g.Wait()
}

// loadFabric returns the description to serve. No configured
// description is an empty fabric: nothing is probed until one is.
// newHost builds the host backend fabric.host selects.
func newHost(cfg config.FabricConfig, fabric *devtree.Fabric, logger *slog.Logger) interpreter.HostOperations {
	if cfg.Host == config.HostSim {
		simHost := sim.NewHost(logger)
		for _, name := range fabric.HostDevices() {
			simHost.AddDevice(name)
		}
		return simHost
	}
	var opts []hostnet.Option
	if cfg.Netns != "" {
		opts = append(opts, hostnet.WithNamespace(cfg.Netns))
	}
	return hostnet.New(logger, opts...)
}

func loadFabric(cfg RunConfig, logger *slog.Logger) (*devtree.Fabric, error) {
	if cfg.Fabric != nil {
		return cfg.Fabric, nil
	}
	if cfg.Config.Fabric.Description == "" {
		logger.Warn("no fabric description configured")
		return devtree.Build(devtree.Description{})
	}
	return devtree.Load(cfg.Config.Fabric.Description)
}

// metricsMux serves the registry on /metrics and the runtime profiles
// under /debug/pprof/.
func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// GRPCServer returns a gRPC server with the Fabric service and the
// logging interceptor registered. The caller serves and stops it.
func (s *Server) GRPCServer() *grpc.Server {
	gs := grpc.NewServer(
		grpc.UnaryInterceptor(s.loggingInterceptor()),
	)
	api.RegisterFabricServer(gs, s)
	return gs
}

// serve listens on socketPath, and on tcpAddr if set, until ctx is
// cancelled.
func (s *Server) serve(ctx context.Context, socketPath, tcpAddr string) error {
	// Ensure socket directory exists
	socketDir := filepath.Dir(socketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	// Remove existing socket file
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	unixListener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	defer unixListener.Close()

	if err := os.Chmod(socketPath, 0660); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	grpcServer := s.GRPCServer()

	// Track errors from serving goroutines
	errChan := make(chan error, 2)

	go func() {
		s.logger.InfoContext(ctx, "dsa gRPC server listening", "socket", socketPath)
		if err := grpcServer.Serve(unixListener); err != nil {
			errChan <- fmt.Errorf("unix socket server: %w", err)
		}
	}()

	// Optionally start TCP listener for remote access
	if tcpAddr != "" {
		tcpListener, err := net.Listen("tcp", tcpAddr)
		if err != nil {
			grpcServer.Stop()
			return fmt.Errorf("failed to listen on TCP %s: %w", tcpAddr, err)
		}

		go func() {
			s.logger.InfoContext(ctx, "dsa gRPC server listening", "tcp", tcpListener.Addr().String())
			if err := grpcServer.Serve(tcpListener); err != nil {
				errChan <- fmt.Errorf("tcp server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		s.logger.InfoContext(ctx, "shutting down gRPC server")
		grpcServer.GracefulStop()
		return nil
	case err := <-errChan:
		grpcServer.Stop()
		return err
	}
}

// loggingInterceptor returns a gRPC unary interceptor that assigns a
// monotonic operation ID to each request and logs errors.
func (s *Server) loggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		opID := s.opCounter.Add(1)
		ctx = manager.ContextWithOpID(ctx, opID)
		resp, err := handler(ctx, req)
		if err != nil {
			s.logger.ErrorContext(ctx, "grpc error", "method", info.FullMethod, "error", err)
		}
		return resp, err
	}
}

// ProbeAll probes every described switch in description order, as a
// bus would at boot. Failures are logged; deferred switches are left
// for the retry loop.
func (s *Server) ProbeAll(ctx context.Context) {
	for _, entry := range s.fabric.Switches() {
		ctx := manager.ContextWithOpID(ctx, s.opCounter.Add(1))
		res, err := s.probe(ctx, entry.Name)
		if err != nil {
			s.logger.WarnContext(ctx, "boot probe failed", "switch", entry.Name, "error", err)
			continue
		}
		s.logger.InfoContext(ctx, "boot probe", "switch", entry.Name, "outcome", res.Outcome, "tree", res.Tree)
	}
}

// probe registers the named switch. A registration deferred for a
// missing uplink is not an error: it is reported in the result and
// queued for retry.
func (s *Server) probe(ctx context.Context, name string) (api.ProbeResult, error) {
	s.mu.Lock()
	attempt, retrying := s.deferred[name]
	s.mu.Unlock()
	if !retrying {
		attempt = uuid.NewString()
	}
	return s.register(ctx, name, attempt, retrying)
}

// register runs one registration of name under attempt. When retrying,
// the switch is only queued again if attempt is still the queued one;
// a Remove that landed while Register held the writer lock wins.
func (s *Server) register(ctx context.Context, name, attempt string, retrying bool) (api.ProbeResult, error) {
	res := api.ProbeResult{Switch: name, Attempt: attempt}

	entry, ok := s.fabric.Switch(name)
	if !ok {
		return res, fmt.Errorf("%q: %w", name, ErrUnknownSwitch)
	}
	sw, err := s.allocate(entry)
	if err != nil {
		return res, err
	}

	ctx = manager.ContextWithAttempt(ctx, attempt)
	err = s.mgr.Register(ctx, sw, entry.Config)

	s.mu.Lock()
	queued, ok := s.deferred[name]
	cancelled := retrying && (!ok || queued != attempt)
	if !cancelled {
		if dsa.IsRetryable(err) {
			s.deferred[name] = attempt
		} else {
			delete(s.deferred, name)
		}
	}
	s.mu.Unlock()

	switch {
	case cancelled && (err == nil || dsa.IsRetryable(err)):
		return s.cancelled(ctx, sw, res, err)
	case dsa.IsRetryable(err):
		res.Outcome = string(interpreter.EventDeferred)
		res.Detail = err.Error()
		return res, nil
	case err != nil:
		return res, err
	}

	trees, err := s.mgr.Trees(ctx)
	if err != nil {
		return res, err
	}
	for _, ts := range trees {
		for _, ms := range ts.Members {
			if ms.Name != name {
				continue
			}
			res.Tree = uint32(ts.ID)
			res.Member = ms.Index
			res.Outcome = string(interpreter.EventPending)
			if ts.State == dsa.TreeApplied {
				res.Outcome = string(interpreter.EventActivated)
			}
		}
	}
	return res, nil
}

// cancelled undoes a retry that the switch was removed during. A
// registration that succeeded anyway is unregistered again.
func (s *Server) cancelled(ctx context.Context, sw *dsa.Switch, res api.ProbeResult, regErr error) (api.ProbeResult, error) {
	if regErr == nil {
		if err := s.mgr.Unregister(ctx, sw); err != nil && !errors.Is(err, dsa.ErrNotRegistered) {
			return res, err
		}
	}
	s.logger.InfoContext(ctx, "deferred probe cancelled", "switch", sw.Name)
	res.Outcome = string(interpreter.EventUnregistered)
	res.Detail = "removed while retrying"
	return res, nil
}

// remove unregisters the named switch. Removing a deferred switch
// cancels its retry.
func (s *Server) remove(ctx context.Context, name string) error {
	if _, ok := s.fabric.Switch(name); !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownSwitch)
	}

	s.mu.Lock()
	_, wasDeferred := s.deferred[name]
	delete(s.deferred, name)
	sw := s.switches[name]
	s.mu.Unlock()

	if sw == nil {
		if wasDeferred {
			return nil
		}
		return fmt.Errorf("unregister %s: %w", name, dsa.ErrNotRegistered)
	}
	err := s.mgr.Unregister(ctx, sw)
	if wasDeferred && errors.Is(err, dsa.ErrNotRegistered) {
		s.logger.InfoContext(ctx, "deferred probe cancelled", "switch", name)
		return nil
	}
	return err
}

// allocate returns the switch for entry, creating it and its driver on
// first use.
func (s *Server) allocate(entry devtree.SwitchEntry) (*dsa.Switch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sw, ok := s.switches[entry.Name]; ok {
		return sw, nil
	}
	name := entry.Driver
	if name == "" {
		name = s.defaultDriver
	}
	newOps, ok := s.drivers[name]
	if !ok {
		return nil, dsa.Invalid("driver", "%q for switch %s is not available", name, entry.Name)
	}
	ops, err := newOps(entry, s.logger.With("switch", entry.Name))
	if err != nil {
		return nil, fmt.Errorf("driver %s for %s: %w", name, entry.Name, err)
	}
	sw, err := dsa.NewSwitch(entry.Name, ops, entry.NumPorts)
	if err != nil {
		return nil, err
	}
	s.switches[entry.Name] = sw
	return sw, nil
}

// Deferred lists the switches waiting to be retried, sorted by name.
func (s *Server) Deferred() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.deferred))
	for name := range s.deferred {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// retryDeferred retries deferred probes every interval until ctx is
// cancelled.
func (s *Server) retryDeferred(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.logger.WarnContext(ctx, "deferred probe retry disabled", "interval", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RetryDeferred(ctx)
		}
	}
}

// RetryDeferred probes every deferred switch once. A switch removed
// since the pass started is skipped.
func (s *Server) RetryDeferred(ctx context.Context) {
	s.mu.Lock()
	queued := maps.Clone(s.deferred)
	s.mu.Unlock()

	for _, name := range slices.Sorted(maps.Keys(queued)) {
		s.mu.Lock()
		attempt, ok := s.deferred[name]
		s.mu.Unlock()
		if !ok || attempt != queued[name] {
			continue
		}

		ctx := manager.ContextWithOpID(ctx, s.opCounter.Add(1))
		res, err := s.register(ctx, name, attempt, true)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "deferred probe failed", "switch", name, "error", err)
		case res.Outcome != string(interpreter.EventDeferred):
			s.logger.InfoContext(ctx, "deferred probe completed", "switch", name, "outcome", res.Outcome, "tree", res.Tree)
		}
	}
}
