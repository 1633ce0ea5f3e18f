package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// PlannerCollector bundles Prometheus metrics for the planner API and the
// sessions behind it.
type PlannerCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	Sessions        prometheus.Gauge
	Towers          prometheus.Gauge
	Links           prometheus.Gauge
	PairingOutcomes *prometheus.CounterVec
}

// NewPlannerCollector registers planner metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewPlannerCollector(reg prometheus.Registerer) (*PlannerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_requests_total",
		Help: "Total number of handled planner RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "planner_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_request_duration_seconds",
		Help:    "Planner RPC latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
	}, []string{"service", "method"}), "planner_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	sessions, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_sessions",
		Help: "Current number of open planning sessions.",
	}), "planner_sessions")
	if err != nil {
		return nil, err
	}
	towers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_towers",
		Help: "Current number of towers across open sessions.",
	}), "planner_towers")
	if err != nil {
		return nil, err
	}
	links, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_links",
		Help: "Current number of links across open sessions.",
	}), "planner_links")
	if err != nil {
		return nil, err
	}

	outcomes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_pairing_outcomes_total",
		Help: "Tower selection events, labeled by pairing outcome (started, cancelled, linked, rejected).",
	}, []string{"outcome"}), "planner_pairing_outcomes_total")
	if err != nil {
		return nil, err
	}

	return &PlannerCollector{
		gatherer:        gatherer,
		RPCRequests:     requests,
		RPCDurations:    durations,
		Sessions:        sessions,
		Towers:          towers,
		Links:           links,
		PairingOutcomes: outcomes,
	}, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *PlannerCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PlannerCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// AdjustCounts satisfies planner.MetricsRecorder.
func (c *PlannerCollector) AdjustCounts(towersDelta, linksDelta int) {
	if c == nil {
		return
	}
	if c.Towers != nil {
		c.Towers.Add(float64(towersDelta))
	}
	if c.Links != nil {
		c.Links.Add(float64(linksDelta))
	}
}

// RecordPairing satisfies planner.MetricsRecorder.
func (c *PlannerCollector) RecordPairing(outcome string) {
	if c == nil || c.PairingOutcomes == nil {
		return
	}
	c.PairingOutcomes.WithLabelValues(outcome).Inc()
}

// SetSessions records the number of open sessions.
func (c *PlannerCollector) SetSessions(n int) {
	if c == nil || c.Sessions == nil {
		return
	}
	c.Sessions.Set(float64(n))
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
