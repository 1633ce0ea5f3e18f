package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewWithWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "debug", Format: "json"}, &buf)

	log.With(String("session_id", "s-1")).Info(context.Background(), "tower added",
		Float64("freq_ghz", 2.4),
		Int("towers", 3),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "tower added" || rec["session_id"] != "s-1" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["freq_ghz"] != 2.4 || rec["towers"] != float64(3) || rec["error"] != "boom" {
		t.Fatalf("unexpected fields: %v", rec)
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "warn"}, &buf)

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("level filtering failed: %q", out)
	}
}

func TestWithRequestLogger_ReusesExistingID(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-42")
	ctx, _ = WithRequestLogger(ctx, nil)
	if got := RequestIDFromContext(ctx); got != "req-42" {
		t.Fatalf("request id = %q, want req-42", got)
	}

	fresh, _ := EnsureRequestID(context.Background())
	if RequestIDFromContext(fresh) == "" {
		t.Fatalf("EnsureRequestID did not attach an ID")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	stored := NewWithWriter(Config{}, &buf)
	ctx := ContextWithLogger(context.Background(), stored)

	if got := FromContext(ctx, nil); got != stored {
		t.Fatalf("FromContext did not return the stored logger")
	}
	if _, ok := FromContext(context.Background(), nil).(noopLogger); !ok {
		t.Fatalf("FromContext without logger should fall back to Noop")
	}
}
