package server

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/server/api"
)

// Probe implements api.FabricServer.
func (s *Server) Probe(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "switch name is required")
	}
	res, err := s.probe(ctx, req.GetValue())
	if err != nil {
		return nil, grpcError(err)
	}
	return encode(res)
}

// Remove implements api.FabricServer.
func (s *Server) Remove(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "switch name is required")
	}
	if err := s.remove(ctx, req.GetValue()); err != nil {
		return nil, grpcError(err)
	}
	return &emptypb.Empty{}, nil
}

// ListTrees implements api.FabricServer.
func (s *Server) ListTrees(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	trees, err := s.mgr.Trees(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	out := api.TreeList{Trees: make([]api.Tree, 0, len(trees))}
	for _, ts := range trees {
		out.Trees = append(out.Trees, treeToAPI(ts))
	}
	return encode(out)
}

// GetTree implements api.FabricServer.
func (s *Server) GetTree(ctx context.Context, req *wrapperspb.UInt32Value) (*structpb.Struct, error) {
	ts, err := s.mgr.Tree(ctx, dsa.TreeID(req.GetValue()))
	if err != nil {
		return nil, grpcError(err)
	}
	return encode(treeToAPI(ts))
}

// Events implements api.FabricServer.
func (s *Server) Events(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.journal == nil {
		return nil, status.Error(codes.Unimplemented, "journal disabled")
	}
	var f api.EventFilter
	if err := api.Decode(req, &f); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	filter, err := filterFromAPI(f)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	entries, err := s.journal.Entries(ctx, filter)
	if err != nil {
		return nil, grpcError(err)
	}
	out := api.EventList{Events: make([]api.Event, 0, len(entries))}
	for _, e := range entries {
		out.Events = append(out.Events, eventToAPI(e))
	}
	return encode(out)
}

// Notify implements api.FabricServer.
func (s *Server) Notify(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	var nr api.NotifyRequest
	if err := api.Decode(req, &nr); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	n, err := notificationFromAPI(nr)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.mgr.Notify(ctx, dsa.TreeID(nr.Tree), n); err != nil {
		return nil, grpcError(err)
	}
	return &emptypb.Empty{}, nil
}

func encode(v any) (*structpb.Struct, error) {
	out, err := api.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
