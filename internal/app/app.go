// Package app wires configuration into one post feed engine and owns the
// clients it depends on.
package app

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gistblog/gistfeed/internal/api"
	"github.com/gistblog/gistfeed/internal/cache"
	"github.com/gistblog/gistfeed/internal/feed"
	"github.com/gistblog/gistfeed/internal/gist"
	"github.com/gistblog/gistfeed/internal/synopsis"
	"github.com/gistblog/gistfeed/pkg/config"
	"github.com/gistblog/gistfeed/pkg/logging"
)

// App holds the engine and its dependencies for one process
type App struct {
	Config        *config.Config
	Engine        *feed.Engine
	FeedCache     *cache.Cache
	SynopsisCache *cache.Cache

	logger *zap.Logger
}

// New builds the gist provider from cfg and wires the application
func New(cfg *config.Config) (*App, error) {
	provider, err := gist.New(&cfg.GitHub)
	if err != nil {
		return nil, err
	}
	return NewWithSource(cfg, provider)
}

// NewWithSource wires the application around an existing gist source.
// Feed and synopsizer share one cache client when their URLs are equal.
func NewWithSource(cfg *config.Config, source feed.Source) (*App, error) {
	logger := logging.WithComponent("app")

	feedCache, err := cache.New(cfg.Feed.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("post feed cache: %w", err)
	}

	synopsisCache := feedCache
	if cfg.Synopsis.RedisURL != cfg.Feed.RedisURL {
		synopsisCache, err = cache.New(cfg.Synopsis.RedisURL)
		if err != nil {
			feedCache.Close()
			return nil, fmt.Errorf("synopsizer cache: %w", err)
		}
	}

	generator, err := synopsis.New(&cfg.Synopsis, synopsisCache)
	if err != nil {
		closeCaches(feedCache, synopsisCache)
		return nil, err
	}

	engine := feed.New(source, feedCache, generator, feed.Settings{
		GistsTTL:         cfg.Feed.GistsTTL,
		AwaitCacheWrites: cfg.Feed.AwaitCacheWrites,
		WriteTimeout:     cfg.GitHub.Timeout,
	})

	logger.Info("Post feed ready",
		zap.String("synopsizer", cfg.Synopsis.Strategy),
		zap.Bool("shared_cache", synopsisCache == feedCache),
		zap.Duration("gists_ttl", cfg.Feed.GistsTTL))

	return &App{
		Config:        cfg,
		Engine:        engine,
		FeedCache:     feedCache,
		SynopsisCache: synopsisCache,
		logger:        logger,
	}, nil
}

// HealthChecks names each distinct cache for the health endpoint
func (a *App) HealthChecks() map[string]api.HealthChecker {
	checks := map[string]api.HealthChecker{"post_feed": a.FeedCache}
	if a.SynopsisCache != a.FeedCache {
		checks["synopsizer"] = a.SynopsisCache
	}
	return checks
}

// Close drains pending cache writes, then closes every cache client once
func (a *App) Close() error {
	engineErr := a.Engine.Close()
	return errors.Join(engineErr, closeCaches(a.FeedCache, a.SynopsisCache))
}

func closeCaches(feedCache, synopsisCache *cache.Cache) error {
	err := feedCache.Close()
	if synopsisCache != feedCache {
		err = errors.Join(err, synopsisCache.Close())
	}
	return err
}
