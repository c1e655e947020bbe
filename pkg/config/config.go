package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfiguration marks operator configuration mistakes that must stop startup
var ErrConfiguration = errors.New("configuration error")

// Synopsizer strategy names accepted by the synopsizer setting
const (
	SynopsizerOpenAI        = "openai"
	SynopsizerTextTruncator = "textTruncator"
)

// Config holds all configuration for the application
type Config struct {
	GitHub    GitHubConfig
	Feed      FeedConfig
	Synopsis  SynopsisConfig
	Server    ServerConfig
	Warmer    WarmerConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// GitHubConfig holds gist provider configuration
type GitHubConfig struct {
	Token   string
	APIURL  string
	Timeout time.Duration
}

// FeedConfig holds post feed cache configuration
type FeedConfig struct {
	RedisURL         string
	GistsTTL         time.Duration
	AwaitCacheWrites bool
}

// SynopsisConfig holds synopsis generator configuration
type SynopsisConfig struct {
	Strategy      string
	RedisURL      string
	OpenAIToken   string
	OpenAIBaseURL string
	OpenAIModel   string
	TruncateWords int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
	Host string
}

// WarmerConfig holds cache warmer configuration
type WarmerConfig struct {
	Interval time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	ServiceName       string
}

const envPrefix = "BLOG"

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.gistfeed")
	v.AddConfigPath("/etc/gistfeed")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found; env vars are enough
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		GitHub: GitHubConfig{
			Token:   getString(v, "github_token", ""),
			APIURL:  getString(v, "github_api_url", ""),
			Timeout: seconds(getInt(v, "http_timeout", 10)),
		},
		Feed: FeedConfig{
			RedisURL:         getString(v, "post_feed_redis_url", "redis://localhost:6379/0"),
			GistsTTL:         seconds(getInt(v, "gists_cache_ttl", 3600)),
			AwaitCacheWrites: getBool(v, "await_cache_writes", false),
		},
		Synopsis: SynopsisConfig{
			Strategy:      getString(v, "synopsizer", SynopsizerTextTruncator),
			RedisURL:      getString(v, "synopsizer_redis_url", "redis://localhost:6379/1"),
			OpenAIToken:   getString(v, "openai_token", ""),
			OpenAIBaseURL: getString(v, "openai_base_url", ""),
			OpenAIModel:   getString(v, "openai_model", "gpt-3.5-turbo"),
			TruncateWords: getInt(v, "synopsis_truncate_words", 0),
		},
		Server: ServerConfig{
			Port: getInt(v, "http_server_port", 8080),
			Host: getString(v, "http_server_host", "0.0.0.0"),
		},
		Warmer: WarmerConfig{
			Interval: seconds(getInt(v, "warm_interval", 300)),
		},
		Logging: LoggingConfig{
			Level:  getString(v, "log_level", "INFO"),
			Format: getString(v, "log_format", "json"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           getBool(v, "telemetry_enabled", false),
			JaegerURL:         getString(v, "jaeger_url", ""),
			PrometheusEnabled: getBool(v, "prometheus_enabled", true),
			ServiceName:       getString(v, "service_name", "gistfeed"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_timeout", 10)
	v.SetDefault("post_feed_redis_url", "redis://localhost:6379/0")
	v.SetDefault("gists_cache_ttl", 3600)
	v.SetDefault("synopsizer", SynopsizerTextTruncator)
	v.SetDefault("synopsizer_redis_url", "redis://localhost:6379/1")
	v.SetDefault("openai_model", "gpt-3.5-turbo")
	v.SetDefault("http_server_port", 8080)
	v.SetDefault("http_server_host", "0.0.0.0")
	v.SetDefault("warm_interval", 300)
	v.SetDefault("log_level", "INFO")
	v.SetDefault("log_format", "json")
	v.SetDefault("prometheus_enabled", true)
	v.SetDefault("service_name", "gistfeed")
}

func getString(v *viper.Viper, key, defaultValue string) string {
	if val := v.GetString(key); val != "" {
		return val
	}
	if val := os.Getenv(envKey(key)); val != "" {
		return val
	}
	return defaultValue
}

func getInt(v *viper.Viper, key string, defaultValue int) int {
	if v.IsSet(key) {
		return v.GetInt(key)
	}
	if val := os.Getenv(envKey(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBool(v *viper.Viper, key string, defaultValue bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	if val := os.Getenv(envKey(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

// envKey converts snake_case keys to BLOG_UPPER_SNAKE_CASE
func envKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.GitHub.Token == "" {
		return fmt.Errorf("%w: github_token is required", ErrConfiguration)
	}
	if c.GitHub.Timeout <= 0 {
		return fmt.Errorf("%w: http_timeout must be positive", ErrConfiguration)
	}
	if c.Feed.GistsTTL <= 0 {
		return fmt.Errorf("%w: gists_cache_ttl must be positive", ErrConfiguration)
	}
	switch c.Synopsis.Strategy {
	case SynopsizerTextTruncator:
	case SynopsizerOpenAI:
		if c.Synopsis.OpenAIToken == "" {
			return fmt.Errorf("%w: openai_token must be set to use synopsizer=%s", ErrConfiguration, SynopsizerOpenAI)
		}
	default:
		return fmt.Errorf("%w: unknown synopsizer %q", ErrConfiguration, c.Synopsis.Strategy)
	}
	if c.Synopsis.TruncateWords < 0 {
		return fmt.Errorf("%w: synopsis_truncate_words must not be negative", ErrConfiguration)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: http_server_port must be between 1 and 65535", ErrConfiguration)
	}
	if c.Warmer.Interval <= 0 {
		return fmt.Errorf("%w: warm_interval must be positive", ErrConfiguration)
	}
	return nil
}
