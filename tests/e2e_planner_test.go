package tests

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jyothishs/rf-outdoor-link-planner/internal/api"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/logging"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/observability"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/planner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

type plannerTestEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	store     *api.SessionStore
	collector *observability.PlannerCollector
	client    *api.Client
}

func newPlannerTestEnv(t *testing.T) *plannerTestEnv {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	collector, err := observability.NewPlannerCollector(prometheus.NewRegistry())
	if err != nil {
		cancel()
		t.Fatalf("NewPlannerCollector: %v", err)
	}
	store, err := api.NewSessionStore(planner.Config{}, logging.Noop(),
		api.WithStoreMetrics(collector),
		api.WithMaxSessions(16),
	)
	if err != nil {
		cancel()
		t.Fatalf("NewSessionStore: %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		cancel()
		t.Fatalf("net.Listen: %v", err)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			api.RequestIDUnaryServerInterceptor(logging.Noop()),
			api.TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	)
	api.RegisterLinkPlannerServer(grpcServer, api.NewServer(store, logging.Noop()))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(lis)
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		cancel()
		t.Fatalf("grpc.NewClient: %v", err)
	}

	t.Cleanup(func() {
		grpcServer.GracefulStop()
		_ = conn.Close()
		cancel()
	})

	return &plannerTestEnv{
		ctx:       ctx,
		cancel:    cancel,
		store:     store,
		collector: collector,
		client:    api.NewClient(conn),
	}
}

func TestEndToEndPlanner(t *testing.T) {
	env := newPlannerTestEnv(t)
	ctx := env.ctx
	client := env.client

	sess, err := client.CreateSession(ctx, 0)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	sid := sess.SessionID

	a, err := client.AddTower(ctx, sid, 28.6, 77.2)
	if err != nil {
		t.Fatalf("AddTower A: %v", err)
	}
	b, err := client.AddTower(ctx, sid, 19.0, 72.8)
	if err != nil {
		t.Fatalf("AddTower B: %v", err)
	}

	// Re-selecting the pending tower cancels.
	if _, err := client.SelectTower(ctx, sid, a.ID); err != nil {
		t.Fatalf("SelectTower: %v", err)
	}
	cancelled, err := client.SelectTower(ctx, sid, a.ID)
	if err != nil {
		t.Fatalf("SelectTower: %v", err)
	}
	if cancelled.Outcome != "cancelled" || cancelled.Link != nil {
		t.Fatalf("re-select = %+v, want cancelled without link", cancelled)
	}

	if _, err := client.SelectTower(ctx, sid, a.ID); err != nil {
		t.Fatalf("SelectTower: %v", err)
	}
	linked, err := client.SelectTower(ctx, sid, b.ID)
	if err != nil {
		t.Fatalf("SelectTower: %v", err)
	}
	if linked.Link == nil {
		t.Fatalf("pairing = %+v, want link", linked)
	}

	// Frequency drift after creation leaves the link alone; the label
	// follows tower A's current channel.
	if _, err := client.UpdateFrequency(ctx, sid, b.ID, 5.0); err != nil {
		t.Fatalf("UpdateFrequency: %v", err)
	}
	if _, err := client.UpdateFrequency(ctx, sid, a.ID, 5.8); err != nil {
		t.Fatalf("UpdateFrequency: %v", err)
	}
	geo, err := client.GetLinkGeometry(ctx, sid, linked.Link.ID)
	if err != nil {
		t.Fatalf("GetLinkGeometry: %v", err)
	}
	if want := fmt.Sprintf("Distance: %.2f km, Channel: 5.8", geo.DistanceKm); geo.Label != want {
		t.Fatalf("label = %q, want %q", geo.Label, want)
	}
	// r = sqrt(c/f * d / 4) at 5.8 GHz
	wantR := math.Sqrt(3e8 / 5.8e9 * geo.DistanceKm * 1000 / 4)
	if math.Abs(geo.FresnelRadiusM-wantR) > 1e-6*wantR {
		t.Fatalf("fresnel radius = %v, want %v", geo.FresnelRadiusM, wantR)
	}

	// Coincident towers on the same channel still link, but have no overlay.
	c, err := client.AddTowerWithFrequency(ctx, sid, 19.0, 72.8, 5.0)
	if err != nil {
		t.Fatalf("AddTower C: %v", err)
	}
	if _, err := client.SelectTower(ctx, sid, b.ID); err != nil {
		t.Fatalf("SelectTower: %v", err)
	}
	degenerate, err := client.SelectTower(ctx, sid, c.ID)
	if err != nil || degenerate.Link == nil {
		t.Fatalf("coincident pairing = %+v, %v", degenerate, err)
	}
	dgeo, err := client.GetLinkGeometry(ctx, sid, degenerate.Link.ID)
	if err != nil {
		t.Fatalf("GetLinkGeometry coincident: %v", err)
	}
	if dgeo.GeometryError == "" || dgeo.Overlay != nil || dgeo.DistanceKm != 0 {
		t.Fatalf("coincident geometry = %+v, want geometry_error and no overlay", dgeo)
	}

	rm, err := client.RemoveTower(ctx, sid, b.ID)
	if err != nil {
		t.Fatalf("RemoveTower: %v", err)
	}
	if len(rm.RemovedLinkIDs) != 2 {
		t.Fatalf("cascade removed %v, want both links", rm.RemovedLinkIDs)
	}
	snap, err := client.GetSnapshot(ctx, sid)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if len(snap.Links) != 0 || len(snap.Towers) != 2 {
		t.Fatalf("snapshot after cascade towers=%d links=%d", len(snap.Towers), len(snap.Links))
	}

	if got := testutil.ToFloat64(env.collector.Towers); got != 2 {
		t.Fatalf("planner_towers = %v, want 2", got)
	}
	if got := testutil.ToFloat64(env.collector.Links); got != 0 {
		t.Fatalf("planner_links = %v, want 0", got)
	}
	if got := testutil.ToFloat64(env.collector.PairingOutcomes.WithLabelValues("cancelled")); got != 1 {
		t.Fatalf("cancelled outcomes = %v, want 1", got)
	}
}

func TestSessionsAreIsolatedE2E(t *testing.T) {
	env := newPlannerTestEnv(t)
	ctx := env.ctx

	const sessions = 8
	var wg sync.WaitGroup
	errs := make(chan error, sessions)

	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := env.client.CreateSession(ctx, 0)
			if err != nil {
				errs <- err
				return
			}
			lat := float64(i)
			a, err := env.client.AddTower(ctx, s.SessionID, lat, 10)
			if err != nil {
				errs <- err
				return
			}
			b, err := env.client.AddTower(ctx, s.SessionID, lat, 11)
			if err != nil {
				errs <- err
				return
			}
			if _, err := env.client.SelectTower(ctx, s.SessionID, a.ID); err != nil {
				errs <- err
				return
			}
			if _, err := env.client.SelectTower(ctx, s.SessionID, b.ID); err != nil {
				errs <- err
				return
			}
			snap, err := env.client.GetSnapshot(ctx, s.SessionID)
			if err != nil {
				errs <- err
				return
			}
			if len(snap.Towers) != 2 || len(snap.Links) != 1 {
				errs <- fmt.Errorf("session %s: towers=%d links=%d", s.SessionID, len(snap.Towers), len(snap.Links))
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	if got := env.store.Len(); got != sessions {
		t.Fatalf("open sessions = %d, want %d", got, sessions)
	}
	if got := testutil.ToFloat64(env.collector.Links); got != sessions {
		t.Fatalf("planner_links = %v, want %d", got, sessions)
	}
}

func TestSessionLimitE2E(t *testing.T) {
	env := newPlannerTestEnv(t)
	for i := 0; i < 16; i++ {
		if _, err := env.client.CreateSession(env.ctx, 0); err != nil {
			t.Fatalf("CreateSession #%d: %v", i, err)
		}
	}
	_, err := env.client.CreateSession(env.ctx, 0)
	if code := status.Code(err); code != codes.ResourceExhausted {
		t.Fatalf("CreateSession over limit code = %v, want ResourceExhausted", code)
	}
}
