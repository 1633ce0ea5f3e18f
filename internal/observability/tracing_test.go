package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestTracingConfigFrom(t *testing.T) {
	env := map[string]string{
		"PLANNER_TRACING_ENABLED":      "TRUE",
		"PLANNER_TRACING_EXPORTER":     "OTLP",
		"PLANNER_TRACING_SAMPLE_RATIO": "0.25",
		"PLANNER_OTLP_ENDPOINT":        "collector:4317",
	}
	cfg := tracingConfigFrom(func(k string) string { return env[k] })

	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ServiceName != "link-planner" {
		t.Fatalf("ServiceName = %q, want default", cfg.ServiceName)
	}
}

func TestTracingConfigFrom_IgnoresBadRatio(t *testing.T) {
	cfg := tracingConfigFrom(func(k string) string {
		if k == "PLANNER_TRACING_SAMPLE_RATIO" {
			return "7"
		}
		return ""
	})
	if cfg.Enabled || cfg.Exporter != "stdout" || cfg.SampleRatio != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInitTracing_StdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "planner-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing error: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "link/create")
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	if !strings.Contains(buf.String(), "link/create") {
		t.Fatalf("span not exported: %q", buf.String())
	}

	// Leave later tests with a noop provider.
	if _, err := InitTracing(context.Background(), TracingConfig{}, nil); err != nil {
		t.Fatalf("reset tracing: %v", err)
	}
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected unsupported exporter error")
	}
}

func TestTracingConfigSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{ratio: 1, want: "ParentBased{root:AlwaysOnSampler"},
		{ratio: 0, want: "ParentBased{root:AlwaysOffSampler"},
		{ratio: 0.5, want: "ParentBased{root:TraceIDRatioBased{0.5}"},
	}
	for _, tc := range tests {
		got := TracingConfig{SampleRatio: tc.ratio}.sampler().Description()
		if !strings.HasPrefix(got, tc.want) {
			t.Fatalf("sampler(%v) = %q, want prefix %q", tc.ratio, got, tc.want)
		}
	}
}
