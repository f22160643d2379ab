package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Search  SearchConfig  `yaml:"search"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Extract ExtractConfig `yaml:"extract"`
	Gateway GatewayConfig `yaml:"gateway"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
}

// SearchConfig holds search backend settings.
type SearchConfig struct {
	// BackendURL is the base URL of the SearXNG instance.
	BackendURL string        `yaml:"backend_url"`
	Timeout    time.Duration `yaml:"timeout"`
	// DefaultEngines is used when a query carries no engine list.
	DefaultEngines []string      `yaml:"default_engines"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	// Breaker configures the circuit breaker in front of the backend.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures circuit breaker behavior for backend calls.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration `yaml:"timeout"`
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration `yaml:"interval"`
}

// FetchConfig holds page fetch settings.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	MaxRedirects int           `yaml:"max_redirects"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// HostInterval is the minimum delay between requests to the same host.
	HostInterval time.Duration `yaml:"host_interval"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	// Renderer selects the fetch backend for JavaScript-heavy pages:
	// "" or "none" disables rendering, "chromedp" launches a headless browser.
	Renderer        string        `yaml:"renderer"`
	RendererTimeout time.Duration `yaml:"renderer_timeout"`
}

// ExtractConfig holds extraction heuristics settings.
type ExtractConfig struct {
	// ExtraBoilerplatePatterns extends the built-in class/id signature table.
	ExtraBoilerplatePatterns []string `yaml:"extra_boilerplate_patterns"`
	// MinBodyChars is the threshold below which extraction falls back to
	// whole-document text.
	MinBodyChars int `yaml:"min_body_chars"`
}

// GatewayConfig holds the plain HTTP wrapper settings.
type GatewayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // stdout, noop
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		Search: SearchConfig{
			BackendURL:     "http://localhost:8888",
			Timeout:        15 * time.Second,
			DefaultEngines: []string{"duckduckgo", "google", "bing"},
			CacheTTL:       10 * time.Minute,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Fetch: FetchConfig{
			Timeout:         10 * time.Second,
			MaxBodyBytes:    5 * 1024 * 1024,
			MaxRedirects:    10,
			MaxRetries:      2,
			RetryBackoff:    200 * time.Millisecond,
			HostInterval:    500 * time.Millisecond,
			CacheTTL:        30 * time.Minute,
			Renderer:        "none",
			RendererTimeout: 30 * time.Second,
		},
		Extract: ExtractConfig{
			MinBodyChars: 80,
		},
		Gateway: GatewayConfig{
			Enabled: false,
			Addr:    "127.0.0.1:5000",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads configuration from path, overlaying the defaults. A missing
// path is not an error: defaults plus environment overrides are returned.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables on the loaded config.
// SEARXNG_URL keeps the name the search backend's own deployment docs use.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SEARXNG_URL"); v != "" {
		cfg.Search.BackendURL = v
	}
	if v := os.Getenv("WEBSCOUT_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("WEBSCOUT_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("WEBSCOUT_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Fetch.Timeout = d
		}
	}
}

// Validate checks the configuration for values that would misbehave at runtime.
func (c Config) Validate() error {
	if c.Search.BackendURL == "" {
		return fmt.Errorf("search.backend_url must not be empty")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be positive")
	}
	if c.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("fetch.max_redirects must not be negative")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must not be negative")
	}
	switch c.Fetch.Renderer {
	case "", "none", "chromedp":
	default:
		return fmt.Errorf("fetch.renderer must be none or chromedp, got %q", c.Fetch.Renderer)
	}
	return nil
}
