// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	GatewayPostgres = "postgres"
	GatewayHTTP     = "http"
)

// Env holds the configuration values for the application.
type Env struct {
	Addr             string
	DatabaseURL      string
	JWTSecret        string
	TokenTTL         time.Duration
	GatewayMode      string
	RemoteBaseURL    string
	RemoteServiceKey string
	ServiceKeyHash   string
	ReviewThreshold  int
	ListLimit        int
	FeedCapacity     int
	OutboxInterval   time.Duration
	TraceStdout      bool
	OTLPEndpoint     string
	ServiceVersion   string
	ShutdownTimeout  time.Duration
	LogLevel         string
}

// Load reads the environment and validates combinations that cannot work.
func Load() (Env, error) {
	var errs []string
	intVal := func(k, def string) int {
		v, err := strconv.Atoi(get(k, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", k, err))
		}
		return v
	}
	durVal := func(k, def string) time.Duration {
		v, err := time.ParseDuration(get(k, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", k, err))
		}
		return v
	}

	e := Env{
		Addr:             get("ADDR", ":8080"),
		DatabaseURL:      get("DATABASE_URL", ""),
		JWTSecret:        get("JWT_SECRET", ""),
		TokenTTL:         durVal("TOKEN_TTL", "12h"),
		GatewayMode:      strings.ToLower(get("GATEWAY_MODE", GatewayPostgres)),
		RemoteBaseURL:    get("REMOTE_BASE_URL", ""),
		RemoteServiceKey: get("REMOTE_SERVICE_KEY", ""),
		ServiceKeyHash:   get("SERVICE_KEY_HASH", ""),
		ReviewThreshold:  intVal("FRAUD_REVIEW_THRESHOLD", "70"),
		ListLimit:        intVal("LIST_LIMIT", "200"),
		FeedCapacity:     intVal("NOTIFICATION_CAPACITY", "100"),
		OutboxInterval:   durVal("OUTBOX_INTERVAL", "2s"),
		TraceStdout:      get("TRACE_STDOUT", "") == "true",
		OTLPEndpoint:     get("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ""),
		ServiceVersion:   get("SERVICE_VERSION", "dev"),
		ShutdownTimeout:  durVal("SHUTDOWN_TIMEOUT", "10s"),
		LogLevel:         strings.ToLower(get("LOG_LEVEL", "info")),
	}

	switch e.GatewayMode {
	case GatewayPostgres:
		if e.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when GATEWAY_MODE=postgres")
		}
	case GatewayHTTP:
		if e.RemoteBaseURL == "" {
			errs = append(errs, "REMOTE_BASE_URL is required when GATEWAY_MODE=http")
		}
	default:
		errs = append(errs, fmt.Sprintf("GATEWAY_MODE: unknown mode %q", e.GatewayMode))
	}
	if e.OutboxInterval <= 0 {
		e.OutboxInterval = 2 * time.Second
	}

	if len(errs) > 0 {
		return Env{}, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return e, nil
}

// get returns the value of the environment variable k or def if not set.
func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
