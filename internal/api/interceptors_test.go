package api

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestOperationName(t *testing.T) {
	tests := []struct {
		fullMethod string
		want       string
	}{
		{fullMethod: FullMethod(MethodAddTower), want: "tower/add"},
		{fullMethod: FullMethod(MethodSelectTower), want: "pairing/select"},
		{fullMethod: FullMethod(MethodExportGeoJSON), want: "session/export_geojson"},
		{fullMethod: "/grpc.health.v1.Health/Check", want: "Health/Check"},
	}
	for _, tc := range tests {
		if got := OperationName(tc.fullMethod); got != tc.want {
			t.Fatalf("OperationName(%q) = %q, want %q", tc.fullMethod, got, tc.want)
		}
	}
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingInterceptorNamesSpanAfterOperation(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	req, err := structpb.NewStruct(map[string]any{"session_id": "sess-1", "tower_id": "t-9"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodRemoveTower)}
	handler := func(ctx context.Context, _ any) (any, error) {
		annotate(ctx, attribute.String("planner.tower_id", "t-9"))
		return nil, status.Error(codes.NotFound, "tower not found")
	}

	_, err = TracingUnaryServerInterceptor()(context.Background(), req, info, handler)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("interceptor error = %v, want NotFound", err)
	}

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	span := ended[0]
	if span.Name() != "tower/remove" {
		t.Fatalf("span name = %q, want tower/remove", span.Name())
	}
	if v, ok := spanAttr(span, "planner.session_id"); !ok || v.AsString() != "sess-1" {
		t.Fatalf("planner.session_id = %v (present %v)", v.AsString(), ok)
	}
	if v, ok := spanAttr(span, "planner.tower_id"); !ok || v.AsString() != "t-9" {
		t.Fatalf("planner.tower_id = %v (present %v)", v.AsString(), ok)
	}
	if v, _ := spanAttr(span, "rpc.grpc.status"); v.AsString() != "NotFound" {
		t.Fatalf("rpc.grpc.status = %q, want NotFound", v.AsString())
	}
	if span.Status().Code != otelcodes.Error {
		t.Fatalf("span status = %v, want Error", span.Status().Code)
	}
}

func TestRequestIDEchoedInResponseHeader(t *testing.T) {
	env := newAPITestEnv(t)

	var header metadata.MD
	if _, err := env.client.CreateSession(env.ctx, 0, grpc.Header(&header)); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if ids := header.Get(RequestIDHeader); len(ids) != 1 || ids[0] == "" {
		t.Fatalf("minted request id header = %v", ids)
	}

	ctx := metadata.AppendToOutgoingContext(env.ctx, RequestIDHeader, "req-42")
	header = nil
	if _, err := env.client.CreateSession(ctx, 0, grpc.Header(&header)); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if ids := header.Get(RequestIDHeader); len(ids) != 1 || ids[0] != "req-42" {
		t.Fatalf("echoed request id header = %v, want [req-42]", ids)
	}
}
