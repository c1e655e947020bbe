package feed

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/gistblog/gistfeed/internal/cache"
	"github.com/gistblog/gistfeed/internal/models"
	"github.com/gistblog/gistfeed/pkg/telemetry"
)

// Eligible reports whether a gist is a blog post: tagged [blog] and carrying meta.yml and post.md
func Eligible(g *models.GistSummary) bool {
	if g == nil || !strings.Contains(g.Description, models.BlogTag) {
		return false
	}
	_, hasMeta := g.Files[models.MetadataFile]
	_, hasPost := g.Files[models.PostFile]
	return hasMeta && hasPost
}

// FetchPosts materializes every eligible gist. Gists are converted in
// parallel; a gist that fails is logged and left out of the feed. Posts keep
// the order the provider listed their gists in.
func (e *Engine) FetchPosts(ctx context.Context, opts Options) (*Response, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.fetch_posts")
	defer span.End()

	// List gists, from the cached listing when allowed
	gists, err := e.listGists(ctx, opts.IgnoreCached)
	if err != nil {
		return nil, err
	}

	// Keep [blog] gists carrying both files
	eligible := make([]models.GistSummary, 0, len(gists))
	for i := range gists {
		if Eligible(&gists[i]) {
			eligible = append(eligible, gists[i])
		}
	}

	// Convert each gist concurrently; results[i] stays nil on failure
	results := make([]*models.Post, len(eligible))
	var wg sync.WaitGroup
	for i := range eligible {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g := eligible[i]
			post, err := e.createPostFromGist(ctx, &g, opts.IgnoreCached)
			if err != nil {
				gistFailures.Add(ctx, 1)
				e.logger.Error("Failed to convert gist to post", zap.String("gist_id", g.ID), zap.Error(err))
				return
			}
			e.cachePost(ctx, post)
			results[i] = post
		}(i)
	}
	wg.Wait()

	// Collect in provider order
	posts := make([]models.Post, 0, len(results))
	for _, post := range results {
		if post == nil {
			continue
		}
		posts = append(posts, shape(*post, opts))
	}

	span.SetAttributes(attribute.Int("feed.gists", len(gists)), attribute.Int("feed.posts", len(posts)))
	return &Response{Posts: posts, Count: len(posts)}, nil
}

// listGists returns the account's gists, served from the whole-list cache entry when allowed
func (e *Engine) listGists(ctx context.Context, ignoreCached bool) ([]models.GistSummary, error) {
	if !ignoreCached {
		if raw, ok := e.cacheGet(ctx, keyRawGists); ok {
			var gists []models.GistSummary
			err := json.Unmarshal([]byte(raw), &gists)
			if err == nil {
				return gists, nil
			}
			e.logger.Warn("Discarding undecodable gist list", zap.Error(err))
		}
	}

	// Fetch live
	gists, err := e.source.ListGists(ctx)
	if err != nil {
		return nil, err
	}

	// Cache the whole listing with its TTL
	if encoded, err := json.Marshal(gists); err == nil {
		e.cacheSet(ctx, keyRawGists, string(encoded), &cache.SetOptions{Expire: e.settings.GistsTTL})
	}
	return gists, nil
}

// shape applies per-query presentation options to a materialized post
func shape(post models.Post, opts Options) models.Post {
	if !opts.ReturnPostText {
		return post.WithoutText()
	}
	return post
}

// cacheGet reads a key, counting failures and undecodable values as misses
func (e *Engine) cacheGet(ctx context.Context, key string) (string, bool) {
	val, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.logger.Warn("Cache read failed, falling back to live fetch", zap.String("key", key), zap.Error(err))
		ok = false
	}
	if ok {
		cacheHits.Add(ctx, 1, attribute.String("namespace", namespaceOf(key)))
	} else {
		cacheMisses.Add(ctx, 1, attribute.String("namespace", namespaceOf(key)))
	}
	return val, ok
}

func (e *Engine) cacheSet(ctx context.Context, key, value string, opts *cache.SetOptions) {
	if err := e.store.Set(ctx, key, value, opts); err != nil {
		e.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (e *Engine) cacheAdd(ctx context.Context, key string, values ...string) {
	if _, err := e.store.AddToSet(ctx, key, values...); err != nil {
		e.logger.Warn("Cache set add failed", zap.String("key", key), zap.Error(err))
	}
}

// namespaceOf trims the per-item suffix from a key for metric attributes
func namespaceOf(key string) string {
	if i := strings.LastIndex(key, ":"); i > 0 && strings.Count(key, ":") > 1 {
		return key[:i]
	}
	return key
}
