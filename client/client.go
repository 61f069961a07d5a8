// Package client talks to the dsa fabric service.
//
// Use Dial to connect to a running daemon:
//
//	c, err := client.Dial(client.DefaultSocketPath())
//	c, err := client.Dial("localhost:50051")
//
// Use Open to simulate a fabric description in process, with simulated
// switches and host devices:
//
//	c, err := client.Open(ctx, fabric)
//
// Both return a Client that can be used identically.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/frobware/go-dsa/server/api"
)

var (
	// ErrNotFound is returned for switches the daemon's description
	// does not name and for trees no switch refers to.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for malformed requests and
	// descriptions.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict is returned when a switch is already registered or
	// its member slot is taken.
	ErrConflict = errors.New("conflict")

	// ErrFailedPrecondition is returned when the fabric is not in a
	// state that allows the operation.
	ErrFailedPrecondition = errors.New("failed precondition")

	// ErrNotSupported is returned when the daemon does not offer an
	// operation.
	ErrNotSupported = errors.New("operation not supported")
)

// Client is a connection to a fabric service.
type Client struct {
	rpc    api.FabricClient
	close  func() error
	logger *slog.Logger
}

// newClient wraps cc. closeFn releases everything behind the client.
func newClient(cc grpc.ClientConnInterface, closeFn func() error, logger *slog.Logger) *Client {
	return &Client{
		rpc:    api.NewFabricClient(cc),
		close:  closeFn,
		logger: logger,
	}
}

// newRemote creates a Client connected to address.
func newRemote(address string, logger *slog.Logger) (*Client, error) {
	target := parseAddress(address)

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", target, err)
	}
	return newClient(conn, conn.Close, logger), nil
}

// parseAddress normalises an address for gRPC.
// Handles Unix socket paths (unix:// prefix or absolute paths starting with /)
// and TCP addresses (host:port).
func parseAddress(address string) string {
	if strings.HasPrefix(address, "unix://") {
		return address
	}
	if strings.HasPrefix(address, "/") {
		return "unix://" + address
	}
	return address
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.close()
}

// Probe registers the named switch. A result with Outcome "deferred"
// means the daemon will retry on its own.
func (c *Client) Probe(ctx context.Context, name string) (api.ProbeResult, error) {
	var res api.ProbeResult
	resp, err := c.rpc.Probe(ctx, wrapperspb.String(name))
	if err != nil {
		return res, translateGRPCError(err)
	}
	if err := api.Decode(resp, &res); err != nil {
		return res, err
	}
	c.logger.DebugContext(ctx, "probed", "switch", name, "outcome", res.Outcome, "attempt", res.Attempt)
	return res, nil
}

// Remove unregisters the named switch.
func (c *Client) Remove(ctx context.Context, name string) error {
	_, err := c.rpc.Remove(ctx, wrapperspb.String(name))
	return translateGRPCError(err)
}

// Trees returns every tree, ordered by id.
func (c *Client) Trees(ctx context.Context) ([]api.Tree, error) {
	resp, err := c.rpc.ListTrees(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, translateGRPCError(err)
	}
	var list api.TreeList
	if err := api.Decode(resp, &list); err != nil {
		return nil, err
	}
	return list.Trees, nil
}

// Tree returns one tree.
func (c *Client) Tree(ctx context.Context, id uint32) (api.Tree, error) {
	var tree api.Tree
	resp, err := c.rpc.GetTree(ctx, wrapperspb.UInt32(id))
	if err != nil {
		return tree, translateGRPCError(err)
	}
	err = api.Decode(resp, &tree)
	return tree, err
}

// Events returns the journal entries matching filter, newest first.
func (c *Client) Events(ctx context.Context, filter api.EventFilter) ([]api.Event, error) {
	req, err := api.Encode(filter)
	if err != nil {
		return nil, err
	}
	resp, err := c.rpc.Events(ctx, req)
	if err != nil {
		return nil, translateGRPCError(err)
	}
	var list api.EventList
	if err := api.Decode(resp, &list); err != nil {
		return nil, err
	}
	return list.Events, nil
}

// Notify delivers a notification to every subscribed switch of a tree.
func (c *Client) Notify(ctx context.Context, req api.NotifyRequest) error {
	s, err := api.Encode(req)
	if err != nil {
		return err
	}
	_, err = c.rpc.Notify(ctx, s)
	return translateGRPCError(err)
}

// SetAgeingTime asks every switch of a tree to age FDB entries after d.
func (c *Client) SetAgeingTime(ctx context.Context, tree uint32, d time.Duration) error {
	return c.Notify(ctx, api.NotifyRequest{Tree: tree, AgeingTime: d.String()})
}

// translateGRPCError maps a gRPC status to one of the package errors,
// keeping the daemon's message.
func translateGRPCError(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.Unimplemented:
		return fmt.Errorf("%s: %w", st.Message(), ErrNotSupported)
	case codes.NotFound:
		return fmt.Errorf("%s: %w", st.Message(), ErrNotFound)
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w", st.Message(), ErrInvalidArgument)
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w", st.Message(), ErrConflict)
	case codes.FailedPrecondition:
		return fmt.Errorf("%s: %w", st.Message(), ErrFailedPrecondition)
	default:
		return err
	}
}
