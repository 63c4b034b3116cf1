// Package config loads and validates the process configuration. All settings
// come from the environment, with an optional YAML overlay for dashboard
// tuning. The resulting Config is constructed once at startup and passed down
// explicitly; nothing in this module reads environment variables after load.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/opsdash/opsdash/datasource"
	"github.com/opsdash/opsdash/mcpclient"
)

// Config aggregates every tunable of the dashboard backend.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Amazon    AmazonConfig    `yaml:"amazon"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Insights  InsightsConfig  `yaml:"insights"`
	Remote    RemoteConfig    `yaml:"remote"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port         int           `env:"SERVER_PORT,default=8080" yaml:"port"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT,default=10s" yaml:"read_timeout"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s" yaml:"write_timeout"`
	EnableCORS   bool          `env:"SERVER_ENABLE_CORS,default=false" yaml:"enable_cors"`
}

// DashboardConfig holds the reporting-window and ranking parameters.
type DashboardConfig struct {
	Marketplace string `env:"DASHBOARD_MARKETPLACE,default=US" yaml:"marketplace"`
	WindowDays  int    `env:"DASHBOARD_WINDOW_DAYS,default=7" yaml:"window_days"`
	TopN        int    `env:"DASHBOARD_TOP_N,default=20" yaml:"top_n"`
	ExportRoot  string `env:"DASHBOARD_EXPORT_ROOT,default=trusted_directories/exports" yaml:"export_root"`
}

// AmazonConfig holds the catalog API credentials. Missing keys degrade to
// the "mock" placeholder, which bestseller search refuses to call with.
type AmazonConfig struct {
	AccessKey    string `env:"AMAZON_ACCESS_KEY" yaml:"access_key"`
	SecretKey    string `env:"AMAZON_SECRET_KEY" yaml:"secret_key"`
	AssociateTag string `env:"AMAZON_ASSOCIATE_TAG" yaml:"associate_tag"`
	Marketplace  string `env:"AMAZON_MARKETPLACE,default=US" yaml:"marketplace"`
}

// StorageConfig describes the optional Postgres history store.
type StorageConfig struct {
	Enabled     bool   `env:"STORAGE_ENABLED,default=false" yaml:"enabled"`
	DatabaseURL string `env:"STORAGE_DATABASE_URL" yaml:"database_url"`
}

// RedisConfig describes the optional Redis instance backing upload tables
// and conversation history. An empty Addr selects the in-memory fallbacks.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" yaml:"addr"`
	Password string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int           `env:"REDIS_DB,default=0" yaml:"db"`
	TTL      time.Duration `env:"REDIS_TTL,default=24h" yaml:"ttl"`
}

// InsightsConfig selects and configures the LLM provider used for
// insight generation.
type InsightsConfig struct {
	Provider       string  `env:"INSIGHTS_PROVIDER,default=openai" yaml:"provider"`
	OpenAIKey      string  `env:"OPENAI_API_KEY" yaml:"openai_key"`
	OpenAIModel    string  `env:"OPENAI_MODEL,default=gpt-4o-mini" yaml:"openai_model"`
	AnthropicKey   string  `env:"ANTHROPIC_API_KEY" yaml:"anthropic_key"`
	AnthropicModel string  `env:"ANTHROPIC_MODEL,default=claude-3-5-haiku-20241022" yaml:"anthropic_model"`
	Temperature    float64 `env:"INSIGHTS_TEMPERATURE,default=0" yaml:"temperature"`
}

// RemoteConfig configures the remote tool endpoint. When Endpoint is empty
// every tool runs locally.
type RemoteConfig struct {
	Endpoint        string        `env:"REMOTE_TOOLS_ENDPOINT" yaml:"endpoint"`
	Timeout         time.Duration `env:"REMOTE_TOOLS_TIMEOUT,default=15s" yaml:"timeout"`
	InsightsTimeout time.Duration `env:"REMOTE_TOOLS_INSIGHTS_TIMEOUT,default=120s" yaml:"insights_timeout"`
	MaxRetries      int           `env:"REMOTE_TOOLS_MAX_RETRIES,default=2" yaml:"max_retries"`
	RetryBaseDelay  time.Duration `env:"REMOTE_TOOLS_RETRY_BASE_DELAY,default=200ms" yaml:"retry_base_delay"`
	Debug           bool          `env:"REMOTE_TOOLS_DEBUG,default=false" yaml:"debug"`
}

// Load reads configuration from the environment and, when overlayPath is not
// empty, applies a YAML overlay on top of the environment values.
func Load(overlayPath string) (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if overlayPath != "" {
		raw, err := os.ReadFile(overlayPath)
		if err != nil {
			return nil, fmt.Errorf("read config overlay: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config overlay: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that envdecode cannot express.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Dashboard.WindowDays < 1 {
		return fmt.Errorf("dashboard window must be at least 1 day, got %d", c.Dashboard.WindowDays)
	}
	if c.Dashboard.TopN < 1 {
		return fmt.Errorf("dashboard top_n must be at least 1, got %d", c.Dashboard.TopN)
	}
	switch c.Insights.Provider {
	case "openai", "anthropic", "none":
	default:
		return fmt.Errorf("unknown insights provider %q", c.Insights.Provider)
	}
	if c.Storage.Enabled && c.Storage.DatabaseURL == "" {
		return fmt.Errorf("storage enabled but STORAGE_DATABASE_URL is empty")
	}
	if c.Remote.MaxRetries < 0 {
		return fmt.Errorf("remote max_retries must be non-negative, got %d", c.Remote.MaxRetries)
	}
	return nil
}

// Credentials translates the Amazon settings into datasource credentials,
// substituting the "mock" placeholder when keys are absent.
func (a AmazonConfig) Credentials() datasource.Credentials {
	access, secret := a.AccessKey, a.SecretKey
	if access == "" || secret == "" {
		access, secret = "mock", "mock"
	}
	return datasource.Credentials{
		AccessKey:    access,
		SecretKey:    secret,
		AssociateTag: a.AssociateTag,
		Marketplace:  a.Marketplace,
	}
}

// ClientConfig translates the remote settings into the tool client's
// configuration. The insight-generation tool gets its own, larger budget.
func (r RemoteConfig) ClientConfig() mcpclient.Config {
	return mcpclient.Config{
		Endpoint: r.Endpoint,
		Timeouts: mcpclient.TimeoutPolicy{
			Default: r.Timeout,
			PerTool: map[string]time.Duration{
				"generate_dashboard_insights": r.InsightsTimeout,
			},
		},
		MaxRetries:     r.MaxRetries,
		RetryBaseDelay: r.RetryBaseDelay,
		Debug:          r.Debug,
	}
}
