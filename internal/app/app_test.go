package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/gistblog/gistfeed/pkg/config"
)

func testConfig(feedURL, synopsisURL string) *config.Config {
	return &config.Config{
		GitHub:   config.GitHubConfig{Token: "ghp_test", Timeout: time.Second},
		Feed:     config.FeedConfig{RedisURL: feedURL, GistsTTL: time.Minute},
		Synopsis: config.SynopsisConfig{Strategy: config.SynopsizerTextTruncator, RedisURL: synopsisURL},
	}
}

func TestNewSharesCacheForEqualURLs(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr() + "/0"

	a, err := New(testConfig(url, url))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.FeedCache != a.SynopsisCache {
		t.Error("expected one cache client for equal URLs")
	}
	if len(a.HealthChecks()) != 1 {
		t.Errorf("HealthChecks() = %d entries, want 1", len(a.HealthChecks()))
	}
}

func TestNewSeparateCaches(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(testConfig("redis://"+mr.Addr()+"/0", "redis://"+mr.Addr()+"/1"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if a.FeedCache == a.SynopsisCache {
		t.Error("expected distinct cache clients for distinct URLs")
	}
	if len(a.HealthChecks()) != 2 {
		t.Errorf("HealthChecks() = %d entries, want 2", len(a.HealthChecks()))
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	mr := miniredis.RunT(t)
	good := "redis://" + mr.Addr() + "/0"

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "malformed feed url", mutate: func(c *config.Config) { c.Feed.RedisURL = "mysql://nope" }},
		{name: "malformed synopsizer url", mutate: func(c *config.Config) { c.Synopsis.RedisURL = "mysql://nope" }},
		{name: "unknown synopsizer", mutate: func(c *config.Config) { c.Synopsis.Strategy = "markov" }},
		{name: "openai without token", mutate: func(c *config.Config) { c.Synopsis.Strategy = config.SynopsizerOpenAI }},
		{name: "missing github token", mutate: func(c *config.Config) { c.GitHub.Token = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(good, good)
			tt.mutate(cfg)
			if _, err := New(cfg); !errors.Is(err, config.ErrConfiguration) {
				t.Errorf("New() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestEnginePingThroughProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr() + "/0"

	github := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"login":"octocat"}`))
	}))
	defer github.Close()

	cfg := testConfig(url, url)
	cfg.GitHub.APIURL = github.URL

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	result, err := a.Engine.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if result.Message != "Authenticated as octocat" {
		t.Errorf("Ping() message = %q", result.Message)
	}
}
