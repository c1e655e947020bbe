package feed

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/gistblog/gistfeed/internal/models"
)

// cachePost records a materialized post and its indexes: the all-posts set,
// the post itself, the slug mapping and one set per category. Writes run in
// the background unless AwaitCacheWrites is set; failures are only logged.
func (e *Engine) cachePost(ctx context.Context, post *models.Post) {
	encoded, err := json.Marshal(post)
	if err != nil {
		e.logger.Error("Failed to encode post for cache", zap.String("post_id", post.ID()), zap.Error(err))
		return
	}

	id := post.ID()
	slug := post.Metadata.Slug
	categories := post.IndexCategories()

	write := func(ctx context.Context) {
		e.cacheAdd(ctx, keyAllPosts, id)
		e.cacheSet(ctx, cacheKey(keyPost, id), string(encoded), nil)
		if slug != "" {
			e.cacheSet(ctx, cacheKey(keyPostSlug, slug), id, nil)
		}
		for _, category := range categories {
			e.cacheAdd(ctx, cacheKey(keyCategory, category), id)
		}
	}

	// Skip writes once Close has begun; the store may already be closed
	if !e.beginWrite() {
		e.logger.Debug("Engine closed, not caching post", zap.String("post_id", id))
		return
	}

	if e.settings.AwaitCacheWrites {
		defer e.pending.Done()
		write(ctx)
		return
	}

	go func() {
		defer e.pending.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.settings.WriteTimeout)
		defer cancel()
		write(wctx)
	}()
}
