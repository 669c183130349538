package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" default:"development"`
	APIPort     string `envconfig:"SERVICE_API_PORT" default:"8080"`
}

// DBConfig holds SQLite settings.
type DBConfig struct {
	Path          string `envconfig:"DB_PATH" default:"snitchvis.db"`
	BusyTimeoutMS int    `envconfig:"DB_BUSY_TIMEOUT_MS" default:"5000"`
	MaxOpenConns  int    `envconfig:"DB_MAX_OPEN_CONNS" default:"4"`
}

// IndexerConfig holds catch-up indexing settings.
type IndexerConfig struct {
	BatchSize        int           `envconfig:"INDEXER_BATCH_SIZE" default:"200"`
	MaxRetries       uint64        `envconfig:"INDEXER_MAX_RETRIES" default:"5"`
	InitialBackoff   time.Duration `envconfig:"INDEXER_INITIAL_BACKOFF" default:"500ms"`
	MaxBackoff       time.Duration `envconfig:"INDEXER_MAX_BACKOFF" default:"30s"`
	DetectProbeDepth int           `envconfig:"INDEXER_DETECT_PROBE_DEPTH" default:"5"`
}

// QueryConfig holds query-resolution defaults.
type QueryConfig struct {
	// BoundsMargin is added on every side of an automatically computed
	// bounding box.
	BoundsMargin int `envconfig:"QUERY_BOUNDS_MARGIN" default:"50"`
	// FallbackBoxSize is the edge length of the box returned when a query
	// selects no events.
	FallbackBoxSize int `envconfig:"QUERY_FALLBACK_BOX_SIZE" default:"500"`
	// DefaultSpan is how far back from the most recent event a query reaches
	// when the caller gives no time bounds.
	DefaultSpan time.Duration `envconfig:"QUERY_DEFAULT_SPAN" default:"30m"`
}

// GatewayConfig locates the chat-gateway sidecar.
type GatewayConfig struct {
	BaseURL string        `envconfig:"GATEWAY_BASE_URL" default:"http://localhost:7700"`
	Token   string        `envconfig:"GATEWAY_TOKEN"`
	Timeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s"`
}

// RendererConfig locates the external render engine.
type RendererConfig struct {
	BaseURL string        `envconfig:"RENDERER_BASE_URL" default:"http://localhost:7800"`
	Timeout time.Duration `envconfig:"RENDERER_TIMEOUT" default:"5m"`
}

// Config is the full service configuration, loaded from the environment.
type Config struct {
	Service  ServiceConfig
	DB       DBConfig
	Indexer  IndexerConfig
	Query    QueryConfig
	Gateway  GatewayConfig
	Renderer RendererConfig
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
