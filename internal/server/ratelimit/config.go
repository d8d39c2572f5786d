package ratelimit

import (
	"net/http"
	"time"

	"github.com/jonathan/smartapply/internal/config"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// FromConfig builds the limiter configuration. Pipeline triggers get the
// configured limit; every other endpoint shares a lenient default.
func FromConfig(cfg config.RateLimitConfig) *Config {
	if !cfg.Enabled {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		EndpointConfigs: TriggerEndpointConfigs(cfg.Limit, cfg.Window, cfg.Burst),
	}
}

// TriggerEndpointConfigs returns the limits for the pipeline trigger endpoints.
func TriggerEndpointConfigs(limit int, window time.Duration, burst int) []EndpointConfig {
	return []EndpointConfig{
		{Path: "/run_pipeline", Method: http.MethodPost, Limit: limit, Window: window, Burst: burst},
		{Path: "/run_pipeline/stream", Method: http.MethodPost, Limit: limit, Window: window, Burst: burst},
	}
}
