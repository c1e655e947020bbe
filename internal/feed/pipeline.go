package feed

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/gistblog/gistfeed/internal/cache"
	"github.com/gistblog/gistfeed/internal/models"
	"github.com/gistblog/gistfeed/pkg/telemetry"
)

// wordsPerMinute is the reading speed behind minutesRead
const wordsPerMinute = 225

// createPostFromGist materializes one eligible gist. meta.yml and post.md are
// loaded concurrently; either failing aborts the gist.
func (e *Engine) createPostFromGist(ctx context.Context, g *models.GistSummary, ignoreCached bool) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.create_post")
	defer span.End()

	metaURL := g.Files[models.MetadataFile]
	postURL := g.Files[models.PostFile]

	var (
		metadata models.PostMetadata
		text     string
	)

	// Load meta.yml and post.md concurrently
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		raw, err := e.loadRaw(gctx, keyRawMetadata, metaURL, ignoreCached)
		if err != nil {
			return fmt.Errorf("load %s for gist %s: %w", models.MetadataFile, g.ID, err)
		}
		if err := yaml.Unmarshal([]byte(raw), &metadata); err != nil {
			return fmt.Errorf("parse %s for gist %s: %w", models.MetadataFile, g.ID, err)
		}
		return nil
	})
	group.Go(func() error {
		if postURL == "" {
			return fmt.Errorf("%w: gist %s has no %s url", ErrMissingPostContent, g.ID, models.PostFile)
		}
		raw, err := e.loadRaw(gctx, keyRawPost, postURL, ignoreCached)
		if err != nil {
			return fmt.Errorf("%w: gist %s: %w", ErrMissingPostContent, g.ID, err)
		}
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("%w: gist %s has an empty %s", ErrMissingPostContent, g.ID, models.PostFile)
		}
		text = raw
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// Computed fields sit outside what meta.yml can set
	if metadata.Categories == nil {
		metadata.Categories = []string{}
	}
	metadata.Detail = detailFromGist(g, metaURL, postURL)
	metadata.Metrics = measure(text)

	post := &models.Post{Metadata: metadata, Text: text}

	// A declared synopsis wins over a generated one
	if declared := strings.TrimSpace(metadata.Synopsis); declared != "" {
		post.Synopsis = metadata.Synopsis
		return post, nil
	}

	generated, err := e.synopsizer.GenerateSynopsis(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("synopsis for gist %s: %w", g.ID, err)
	}
	post.Synopsis = generated
	return post, nil
}

// loadRaw returns a raw gist file, read through the cache under namespace:digest(url).
// Only non-empty bodies are cached.
func (e *Engine) loadRaw(ctx context.Context, namespace, rawURL string, ignoreCached bool) (string, error) {
	key := cacheKey(namespace, cache.Digest(rawURL))

	if !ignoreCached {
		if body, ok := e.cacheGet(ctx, key); ok && body != "" {
			return body, nil
		}
	}

	// Fetch live and cache non-empty bodies
	body, err := e.source.FetchRaw(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if body != "" {
		e.cacheSet(ctx, key, body, nil)
	}
	return body, nil
}

// detailFromGist builds the computed detail block from gist fields alone
func detailFromGist(g *models.GistSummary, metaURL, postURL string) models.PostDetail {
	name := g.Owner.Name
	if name == "" {
		name = g.Owner.Login
	}
	return models.PostDetail{
		Author: models.PostAuthor{
			AvatarURL: g.Owner.AvatarURL,
			Name:      name,
			Email:     g.Owner.Email,
		},
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
		Description: g.Description,
		ETag:        cache.Digest(metaURL + "\n" + postURL),
		ID:          g.ID,
		IsPublic:    g.Public,
	}
}

// measure computes word count and reading time rounded to one decimal
func measure(text string) *models.PostMetrics {
	words := len(strings.Fields(text))
	minutes := math.Round(float64(words)/wordsPerMinute*10) / 10
	return &models.PostMetrics{MinutesRead: minutes, WordCount: words}
}
