package api

import (
	"context"

	"github.com/jyothishs/rf-outdoor-link-planner/internal/logging"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "x-request-id"

	tracerName = "github.com/jyothishs/rf-outdoor-link-planner/internal/api"
)

// operationNames maps each RPC to the planner operation it drives.
var operationNames = map[string]string{
	MethodCreateSession:   "session/create",
	MethodCloseSession:    "session/close",
	MethodAddTower:        "tower/add",
	MethodUpdateFrequency: "tower/update_frequency",
	MethodRemoveTower:     "tower/remove",
	MethodSelectTower:     "pairing/select",
	MethodRemoveLink:      "link/remove",
	MethodHighlightLink:   "link/highlight",
	MethodGetSnapshot:     "session/snapshot",
	MethodGetLinkGeometry: "link/geometry",
	MethodExportGeoJSON:   "session/export_geojson",
}

// OperationName returns the span name for a gRPC full method. Methods outside
// LinkPlannerService keep their "service/method" form.
func OperationName(fullMethod string) string {
	service, method := observability.SplitMethod(fullMethod)
	if op, ok := operationNames[method]; ok && service == "LinkPlannerService" {
		return op
	}
	return service + "/" + method
}

// sessionIDOf peeks at the session_id key of a request without decoding it.
func sessionIDOf(req any) string {
	in, ok := req.(*structpb.Struct)
	if !ok || in == nil {
		return ""
	}
	return in.GetFields()["session_id"].GetStringValue()
}

// RequestIDUnaryServerInterceptor takes the request ID from inbound metadata
// or mints one, echoes it in the response header and stores a request logger
// tagged with the ID, method and session on the context.
func RequestIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDHeader); len(vals) > 0 && vals[0] != "" {
				ctx = logging.ContextWithRequestID(ctx, vals[0])
			}
		}

		fields := []logging.Field{logging.String("op", OperationName(info.FullMethod))}
		if sid := sessionIDOf(req); sid != "" {
			fields = append(fields, logging.String("session_id", sid))
		}
		ctx, reqLog := logging.WithRequestLogger(ctx, base.With(fields...))
		ctx = logging.ContextWithLogger(ctx, reqLog)

		// Fails only outside a real transport, e.g. direct handler calls.
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, logging.RequestIDFromContext(ctx)))

		return handler(ctx, req)
	}
}

// TracingUnaryServerInterceptor renames the RPC span after the planner
// operation and records the session, request ID and final status code. A
// server span is started when no stats handler has created one.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		name := OperationName(info.FullMethod)

		span := trace.SpanFromContext(ctx)
		owned := !span.SpanContext().IsValid()
		if owned {
			ctx, span = tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
		} else {
			span.SetName(name)
		}

		_, method := observability.SplitMethod(info.FullMethod)
		span.SetAttributes(attribute.String("rpc.method", method))
		if sid := sessionIDOf(req); sid != "" {
			span.SetAttributes(attribute.String("planner.session_id", sid))
		}
		if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
			span.SetAttributes(attribute.String("request_id", reqID))
		}

		resp, err := handler(ctx, req)

		code := status.Code(err)
		span.SetAttributes(attribute.String("rpc.grpc.status", code.String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, code.String())
		}
		return resp, err
	}
}

// annotate adds planner attributes to the RPC span on ctx.
func annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
