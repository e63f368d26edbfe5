package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const DefaultHealthTimeout = 3 * time.Second

// ErrUnavailable reports a failed health check when memory fallback is disabled.
var ErrUnavailable = errors.New("apiclient: api unavailable")

// Mode names the backend chosen at startup.
type Mode string

const (
	ModeRemote Mode = "remote"
	ModeMemory Mode = "memory"
)

type ResolveConfig struct {
	BaseURL          string
	HealthTimeout     time.Duration
	FallbackToMemory bool
	HTTPClient       *http.Client
	Logger           *zap.Logger
}

// Resolve checks /health once and picks the backend for the whole session.
func Resolve(ctx context.Context, cfg ResolveConfig) (Backend, Mode, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := New(Config{BaseURL: cfg.BaseURL, HTTPClient: cfg.HTTPClient, Logger: logger})
	if err != nil {
		return nil, "", err
	}

	timeout := cfg.HealthTimeout
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	healthCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, healthErr := client.Health(healthCtx)
	if healthErr == nil {
		logger.Info("using slides api", zap.String("base_url", client.BaseURL()))
		return client, ModeRemote, nil
	}
	if !cfg.FallbackToMemory {
		return nil, "", fmt.Errorf("%w at %s: %v", ErrUnavailable, client.BaseURL(), healthErr)
	}

	logger.Warn("slides api not available, using in-memory sample slides",
		zap.String("base_url", client.BaseURL()),
		zap.Error(healthErr),
	)
	return NewSampleMemoryBackend(), ModeMemory, nil
}
