// Package rpc exposes a zone as the gRPC service rtls.ZoneService. Messages
// are google.protobuf.Struct values so the service needs no generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rtls.ZoneService"

// Full method names.
const (
	AddDeviceMethod       = "/" + ServiceName + "/AddDevice"
	AddMeasureMethod      = "/" + ServiceName + "/AddMeasure"
	GetDeviceMethod       = "/" + ServiceName + "/GetDevice"
	GetAllPositionsMethod = "/" + ServiceName + "/GetAllPositions"
	WatchPositionsMethod  = "/" + ServiceName + "/WatchPositions"
)

// ZoneServiceServer is the server API for rtls.ZoneService.
type ZoneServiceServer interface {
	AddDevice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddMeasure(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDevice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAllPositions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchPositions(*structpb.Struct, grpc.ServerStream) error
}

type unaryCall func(ZoneServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ZoneServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ZoneServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchPositionsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ZoneServiceServer).WatchPositions(in, stream)
}

// ZoneServiceDesc describes rtls.ZoneService for grpc.Server.RegisterService.
var ZoneServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ZoneServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddDevice", Handler: unaryHandler(AddDeviceMethod, ZoneServiceServer.AddDevice)},
		{MethodName: "AddMeasure", Handler: unaryHandler(AddMeasureMethod, ZoneServiceServer.AddMeasure)},
		{MethodName: "GetDevice", Handler: unaryHandler(GetDeviceMethod, ZoneServiceServer.GetDevice)},
		{MethodName: "GetAllPositions", Handler: unaryHandler(GetAllPositionsMethod, ZoneServiceServer.GetAllPositions)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchPositions", Handler: watchPositionsHandler, ServerStreams: true},
	},
	Metadata: "rtls/zone.proto",
}

// RegisterZoneServiceServer registers srv on s.
func RegisterZoneServiceServer(s grpc.ServiceRegistrar, srv ZoneServiceServer) {
	s.RegisterService(&ZoneServiceDesc, srv)
}
