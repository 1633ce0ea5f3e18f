package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jyothishs/rf-outdoor-link-planner/internal/api"
	"github.com/jyothishs/rf-outdoor-link-planner/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPlannerServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := Config{
		ListenAddress:  lis.Addr().String(),
		MetricsAddress: "",
		DefaultFreqGHz: 5.8,
		MaxSessions:    4,
		Registerer:     prometheus.NewRegistry(),
	}

	log := logging.New(logging.Config{Level: "warn", Format: "text"})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	conn, err := grpc.NewClient(cfg.ListenAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	client := api.NewClient(conn)
	sess, err := client.CreateSession(ctx, 0)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.DefaultFreqGHz != 5.8 {
		t.Fatalf("session default frequency = %v, want 5.8", sess.DefaultFreqGHz)
	}

	tw, err := client.AddTower(ctx, sess.SessionID, 12.97, 77.59)
	if err != nil {
		t.Fatalf("AddTower: %v", err)
	}
	if tw.FreqGHz != 5.8 {
		t.Fatalf("tower frequency = %v, want 5.8", tw.FreqGHz)
	}

	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}

func TestPlannerServerRejectsBadDefaultFrequency(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer lis.Close()

	cfg := Config{DefaultFreqGHz: -1, Registerer: prometheus.NewRegistry()}
	if err := run(context.Background(), cfg, logging.Noop(), lis); err == nil {
		t.Fatalf("run with negative default frequency returned nil error")
	}
}
