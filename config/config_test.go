package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/reviewdesk")

	e, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e.Addr != ":8080" || e.GatewayMode != GatewayPostgres {
		t.Errorf("unexpected defaults %+v", e)
	}
	if e.ReviewThreshold != 70 || e.ListLimit != 200 || e.FeedCapacity != 100 {
		t.Errorf("unexpected numeric defaults %+v", e)
	}
	if e.ShutdownTimeout != 10*time.Second || e.TokenTTL != 12*time.Hour {
		t.Errorf("unexpected durations %+v", e)
	}
}

func TestLoadHTTPMode(t *testing.T) {
	t.Setenv("GATEWAY_MODE", "HTTP")
	t.Setenv("REMOTE_BASE_URL", "http://records.internal:8080")
	t.Setenv("TRACE_STDOUT", "true")

	e, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e.GatewayMode != GatewayHTTP || !e.TraceStdout {
		t.Errorf("unexpected env %+v", e)
	}
}

func TestLoadCollectsErrors(t *testing.T) {
	t.Setenv("GATEWAY_MODE", "http")
	t.Setenv("LIST_LIMIT", "many")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"LIST_LIMIT", "SHUTDOWN_TIMEOUT", "REMOTE_BASE_URL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("GATEWAY_MODE", "grpc")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("expected unknown mode error, got %v", err)
	}
}
