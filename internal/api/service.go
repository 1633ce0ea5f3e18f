package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "linkplanner.v1.LinkPlannerService"

// Method names of LinkPlannerService.
const (
	MethodCreateSession   = "CreateSession"
	MethodCloseSession    = "CloseSession"
	MethodAddTower        = "AddTower"
	MethodUpdateFrequency = "UpdateFrequency"
	MethodRemoveTower     = "RemoveTower"
	MethodSelectTower     = "SelectTower"
	MethodRemoveLink      = "RemoveLink"
	MethodHighlightLink   = "HighlightLink"
	MethodGetSnapshot     = "GetSnapshot"
	MethodGetLinkGeometry = "GetLinkGeometry"
	MethodExportGeoJSON   = "ExportGeoJSON"
)

// FullMethod returns the gRPC path for a method of LinkPlannerService.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// LinkPlannerServer is the server API for LinkPlannerService. Requests and
// responses are structpb.Struct documents; see messages.go for their keys.
type LinkPlannerServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddTower(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateFrequency(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveTower(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SelectTower(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveLink(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HighlightLink(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLinkGeometry(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportGeoJSON(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(LinkPlannerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LinkPlannerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LinkPlannerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes LinkPlannerService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LinkPlannerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodCreateSession, Handler: unaryHandler(MethodCreateSession, LinkPlannerServer.CreateSession)},
		{MethodName: MethodCloseSession, Handler: unaryHandler(MethodCloseSession, LinkPlannerServer.CloseSession)},
		{MethodName: MethodAddTower, Handler: unaryHandler(MethodAddTower, LinkPlannerServer.AddTower)},
		{MethodName: MethodUpdateFrequency, Handler: unaryHandler(MethodUpdateFrequency, LinkPlannerServer.UpdateFrequency)},
		{MethodName: MethodRemoveTower, Handler: unaryHandler(MethodRemoveTower, LinkPlannerServer.RemoveTower)},
		{MethodName: MethodSelectTower, Handler: unaryHandler(MethodSelectTower, LinkPlannerServer.SelectTower)},
		{MethodName: MethodRemoveLink, Handler: unaryHandler(MethodRemoveLink, LinkPlannerServer.RemoveLink)},
		{MethodName: MethodHighlightLink, Handler: unaryHandler(MethodHighlightLink, LinkPlannerServer.HighlightLink)},
		{MethodName: MethodGetSnapshot, Handler: unaryHandler(MethodGetSnapshot, LinkPlannerServer.GetSnapshot)},
		{MethodName: MethodGetLinkGeometry, Handler: unaryHandler(MethodGetLinkGeometry, LinkPlannerServer.GetLinkGeometry)},
		{MethodName: MethodExportGeoJSON, Handler: unaryHandler(MethodExportGeoJSON, LinkPlannerServer.ExportGeoJSON)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "linkplanner/v1/link_planner.proto",
}

// RegisterLinkPlannerServer registers srv with a gRPC service registrar.
func RegisterLinkPlannerServer(s grpc.ServiceRegistrar, srv LinkPlannerServer) {
	s.RegisterService(&ServiceDesc, srv)
}
