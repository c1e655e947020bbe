package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("BLOG_GITHUB_TOKEN", "ghp_test")
	t.Setenv("BLOG_GISTS_CACHE_TTL", "120")
	t.Setenv("BLOG_POST_FEED_REDIS_URL", "redis://cache:6379/3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GitHub.Token != "ghp_test" {
		t.Errorf("Expected github token from env, got: %s", cfg.GitHub.Token)
	}
	if cfg.Feed.GistsTTL != 120*time.Second {
		t.Errorf("Expected gists TTL 120s, got: %v", cfg.Feed.GistsTTL)
	}
	if cfg.Feed.RedisURL != "redis://cache:6379/3" {
		t.Errorf("Expected feed redis URL from env, got: %s", cfg.Feed.RedisURL)
	}
	if cfg.Synopsis.RedisURL != "redis://localhost:6379/1" {
		t.Errorf("Expected default synopsizer redis URL, got: %s", cfg.Synopsis.RedisURL)
	}
	if cfg.Synopsis.Strategy != SynopsizerTextTruncator {
		t.Errorf("Expected default synopsizer %q, got: %s", SynopsizerTextTruncator, cfg.Synopsis.Strategy)
	}
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("BLOG_GITHUB_TOKEN", "")

	_, err := Load()
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Load() error = %v, want ErrConfiguration", err)
	}
}

func validConfig() *Config {
	return &Config{
		GitHub:   GitHubConfig{Token: "ghp_test", Timeout: 10 * time.Second},
		Feed:     FeedConfig{RedisURL: "redis://localhost:6379/0", GistsTTL: time.Hour},
		Synopsis: SynopsisConfig{Strategy: SynopsizerTextTruncator},
		Server:   ServerConfig{Port: 8080},
		Warmer:   WarmerConfig{Interval: time.Minute},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing github token",
			mutate:  func(c *Config) { c.GitHub.Token = "" },
			wantErr: true,
		},
		{
			name:    "unknown synopsizer",
			mutate:  func(c *Config) { c.Synopsis.Strategy = "markov" },
			wantErr: true,
		},
		{
			name:    "openai without token",
			mutate:  func(c *Config) { c.Synopsis.Strategy = SynopsizerOpenAI },
			wantErr: true,
		},
		{
			name: "openai with token",
			mutate: func(c *Config) {
				c.Synopsis.Strategy = SynopsizerOpenAI
				c.Synopsis.OpenAIToken = "sk-test"
			},
		},
		{
			name:    "zero gists ttl",
			mutate:  func(c *Config) { c.Feed.GistsTTL = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "negative truncation",
			mutate:  func(c *Config) { c.Synopsis.TruncateWords = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrConfiguration) {
				t.Errorf("Validate() error = %v, want wrapped ErrConfiguration", err)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	if got := envKey("github_token"); got != "BLOG_GITHUB_TOKEN" {
		t.Errorf("envKey() = %v, want %v", got, "BLOG_GITHUB_TOKEN")
	}
}
