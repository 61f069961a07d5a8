// Package api defines the dsa.v1.Fabric gRPC service.
//
// The service carries protobuf well-known types only. Requests name a
// switch or a tree with a wrapper message; structured results travel as
// a google.protobuf.Struct holding the JSON encoding of the types in
// this package. Encode and Decode convert between the two, so neither
// side ever touches a Struct field by hand.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dsa.v1.Fabric"

const (
	Fabric_Probe_FullMethodName     = "/dsa.v1.Fabric/Probe"
	Fabric_Remove_FullMethodName    = "/dsa.v1.Fabric/Remove"
	Fabric_ListTrees_FullMethodName = "/dsa.v1.Fabric/ListTrees"
	Fabric_GetTree_FullMethodName   = "/dsa.v1.Fabric/GetTree"
	Fabric_Events_FullMethodName    = "/dsa.v1.Fabric/Events"
	Fabric_Notify_FullMethodName    = "/dsa.v1.Fabric/Notify"
)

// FabricServer is the server API for the Fabric service.
type FabricServer interface {
	// Probe registers the named switch. The result is a ProbeResult.
	Probe(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// Remove unregisters the named switch.
	Remove(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	// ListTrees returns a TreeList.
	ListTrees(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetTree returns a Tree.
	GetTree(context.Context, *wrapperspb.UInt32Value) (*structpb.Struct, error)
	// Events takes an EventFilter and returns an EventList.
	Events(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Notify takes a NotifyRequest.
	Notify(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// FabricClient is the client API for the Fabric service.
type FabricClient interface {
	Probe(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Remove(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	ListTrees(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetTree(ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption) (*structpb.Struct, error)
	Events(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Notify(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type fabricClient struct {
	cc grpc.ClientConnInterface
}

// NewFabricClient returns a client bound to cc.
func NewFabricClient(cc grpc.ClientConnInterface) FabricClient {
	return &fabricClient{cc: cc}
}

func (c *fabricClient) Probe(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Fabric_Probe_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fabricClient) Remove(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, Fabric_Remove_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fabricClient) ListTrees(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Fabric_ListTrees_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fabricClient) GetTree(ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Fabric_GetTree_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fabricClient) Events(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Fabric_Events_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fabricClient) Notify(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, Fabric_Notify_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterFabricServer registers srv with s.
func RegisterFabricServer(s grpc.ServiceRegistrar, srv FabricServer) {
	s.RegisterService(&Fabric_ServiceDesc, srv)
}

// unary adapts one FabricServer method to a grpc.MethodHandler.
func unary[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](fullMethod string, call func(FabricServer, context.Context, PReq) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FabricServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FabricServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Fabric_ServiceDesc is the grpc.ServiceDesc for the Fabric service.
var Fabric_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FabricServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Probe",
			Handler:    unary(Fabric_Probe_FullMethodName, FabricServer.Probe),
		},
		{
			MethodName: "Remove",
			Handler:    unary(Fabric_Remove_FullMethodName, FabricServer.Remove),
		},
		{
			MethodName: "ListTrees",
			Handler:    unary(Fabric_ListTrees_FullMethodName, FabricServer.ListTrees),
		},
		{
			MethodName: "GetTree",
			Handler:    unary(Fabric_GetTree_FullMethodName, FabricServer.GetTree),
		},
		{
			MethodName: "Events",
			Handler:    unary(Fabric_Events_FullMethodName, FabricServer.Events),
		},
		{
			MethodName: "Notify",
			Handler:    unary(Fabric_Notify_FullMethodName, FabricServer.Notify),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dsa/v1/fabric.proto",
}
