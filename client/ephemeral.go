package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/frobware/go-dsa/devtree"
	"github.com/frobware/go-dsa/driver/sim"
	"github.com/frobware/go-dsa/interpreter/store/sqlite"
	"github.com/frobware/go-dsa/manager"
	"github.com/frobware/go-dsa/server"
	"github.com/frobware/go-dsa/tagger"
)

// Open simulates fabric in process and returns a client for it. Every
// switch uses the simulated driver whatever its description names, and
// the host is an in-memory one. Nothing is probed until the caller asks.
//
// The client goes through the same gRPC handlers a daemon serves, over
// an in-memory connection. The journal lives in memory and is lost on
// Close.
func Open(ctx context.Context, fabric *devtree.Fabric, opts ...Option) (*Client, error) {
	o := newOptions(opts)

	journal, err := sqlite.NewInMemory(ctx, o.logger)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	host := sim.NewHost(o.logger)
	if !o.absent {
		for _, name := range fabric.HostDevices() {
			host.AddDevice(name)
		}
	}
	for _, name := range o.devices {
		host.AddDevice(name)
	}

	mgr := manager.New(host, tagger.New(), o.logger, manager.WithJournal(journal))
	srv := server.New(mgr, fabric, o.logger,
		server.WithJournal(journal),
		forceSim(fabric),
	)

	lis := bufconn.Listen(1 << 20)
	grpcServer := srv.GRPCServer()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := grpcServer.Serve(lis); err != nil {
			o.logger.Error("in-process server failed", "error", err)
		}
	}()

	conn, err := grpc.NewClient("passthrough:///dsa",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		grpcServer.Stop()
		wg.Wait()
		journal.Close()
		return nil, fmt.Errorf("connect to in-process server: %w", err)
	}

	closeFn := func() error {
		err := conn.Close()
		grpcServer.Stop()
		wg.Wait()
		return errors.Join(err, journal.Close())
	}
	return newClient(conn, closeFn, o.logger), nil
}

// forceSim maps every driver the description names to the simulated
// one.
func forceSim(fabric *devtree.Fabric) server.Option {
	return func(s *server.Server) {
		for _, e := range fabric.Switches() {
			if e.Driver != "" {
				server.WithDriver(e.Driver, server.SimDriver)(s)
			}
		}
	}
}
