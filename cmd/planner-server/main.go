package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jyothishs/rf-outdoor-link-planner/internal/api"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/logging"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/observability"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/planner"
	"github.com/jyothishs/rf-outdoor-link-planner/model"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Config holds the server's command-line settings.
type Config struct {
	ListenAddress  string
	MetricsAddress string
	DefaultFreqGHz float64
	MaxSessions    int

	// Registerer receives the planner metrics. Nil uses the global registry.
	Registerer prometheus.Registerer
}

func main() {
	grpcAddr := flag.String("grpc-addr", ":50051", "TCP address the planner gRPC server listens on")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for Prometheus /metrics (empty disables)")
	defaultFreq := flag.Float64("default-freq-ghz", model.DefaultFrequencyGHz, "Channel assigned to towers placed by map click")
	maxSessions := flag.Int("max-sessions", api.DefaultMaxSessions, "Maximum number of open planning sessions")
	flag.Parse()

	log := logging.NewFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	lis, err := net.Listen("tcp", *grpcAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", *grpcAddr), logging.Err(err))
		os.Exit(1)
	}

	cfg := Config{
		ListenAddress:  *grpcAddr,
		MetricsAddress: *metricsAddr,
		DefaultFreqGHz: *defaultFreq,
		MaxSessions:    *maxSessions,
	}
	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "planner server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the planner API on lis until ctx is cancelled.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	collector, err := observability.NewPlannerCollector(cfg.Registerer)
	if err != nil {
		return err
	}

	store, err := api.NewSessionStore(
		planner.Config{DefaultFreqGHz: cfg.DefaultFreqGHz},
		log,
		api.WithMaxSessions(cfg.MaxSessions),
		api.WithStoreMetrics(collector),
	)
	if err != nil {
		return err
	}

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			api.RequestIDUnaryServerInterceptor(log),
			api.TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	)
	api.RegisterLinkPlannerServer(server, api.NewServer(store, log))

	g, gctx := errgroup.WithContext(ctx)

	metricsSrv := newMetricsServer(cfg.MetricsAddress, collector)
	if metricsSrv != nil {
		g.Go(func() error {
			log.Info(gctx, "serving Prometheus metrics", logging.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		log.Info(gctx, "starting planner gRPC server",
			logging.String("addr", lis.Addr().String()),
			logging.Float64("default_freq_ghz", store.Defaults().DefaultFreqGHz),
		)
		if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down planner server")
		server.GracefulStop()
		store.CloseAll(context.Background())

		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}

func newMetricsServer(addr string, collector *observability.PlannerCollector) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
