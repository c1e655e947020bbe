package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gistblog/gistfeed/internal/gist"
	"github.com/gistblog/gistfeed/internal/models"
	"github.com/gistblog/gistfeed/pkg/telemetry"
)

// FetchPostByID returns one post, from cache when allowed, else by fetching
// and materializing its gist directly.
func (e *Engine) FetchPostByID(ctx context.Context, id string, opts Options) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.fetch_post_by_id")
	defer span.End()

	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrPostNotFound)
	}

	// Try cache first
	if !opts.IgnoreCached {
		if post, ok := e.cachedPost(ctx, id); ok {
			shaped := shape(*post, opts)
			return &shaped, nil
		}
	}

	// Fall back to the single gist
	g, err := e.source.GetGist(ctx, id)
	if err != nil {
		if errors.Is(err, gist.ErrGistNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPostNotFound, id)
		}
		return nil, err
	}
	if !Eligible(g) {
		return nil, fmt.Errorf("%w: gist %s is not a blog post", ErrPostNotFound, id)
	}

	post, err := e.createPostFromGist(ctx, g, opts.IgnoreCached)
	if err != nil {
		return nil, err
	}
	e.cachePost(ctx, post)

	shaped := shape(*post, opts)
	return &shaped, nil
}

// FetchPostBySlug resolves a slug through the slug index, falling back to a
// live feed scan when the index has no usable entry.
func (e *Engine) FetchPostBySlug(ctx context.Context, slug string, opts Options) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.fetch_post_by_slug")
	defer span.End()

	if slug == "" {
		return nil, fmt.Errorf("%w: empty slug", ErrPostNotFound)
	}

	if !opts.IgnoreCached {
		if id, ok := e.cacheGet(ctx, cacheKey(keyPostSlug, slug)); ok && id != "" {
			post, err := e.FetchPostByID(ctx, id, opts)
			if err == nil && post.Metadata.Slug == slug {
				return post, nil
			}
			if err != nil && !errors.Is(err, ErrPostNotFound) {
				return nil, err
			}
			e.logger.Debug("Stale slug index entry", zap.String("slug", slug), zap.String("post_id", id))
		}
	}

	// Scan the live feed
	resp, err := e.FetchPosts(ctx, Options{IgnoreCached: opts.IgnoreCached, ReturnPostText: opts.ReturnPostText})
	if err != nil {
		return nil, err
	}
	for i := range resp.Posts {
		if resp.Posts[i].Metadata.Slug == slug {
			return &resp.Posts[i], nil
		}
	}
	return nil, fmt.Errorf("%w: slug %s", ErrPostNotFound, slug)
}

// FetchPostsByCategory returns the posts indexed under a category, matched
// case-insensitively and newest first. An empty or unreadable index falls
// back to filtering the live feed.
func (e *Engine) FetchPostsByCategory(ctx context.Context, category string, opts Options) (*Response, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.fetch_posts_by_category")
	defer span.End()

	folded := strings.ToLower(strings.TrimSpace(category))
	if folded == "" {
		return &Response{Posts: []models.Post{}}, nil
	}

	var posts []models.Post
	if !opts.IgnoreCached {
		for _, post := range e.postsFromIndex(ctx, cacheKey(keyCategory, folded), opts) {
			if inCategory(&post, folded) {
				posts = append(posts, post)
			}
		}
	}

	// Empty or unreadable index, filter the live feed
	if len(posts) == 0 {
		resp, err := e.FetchPosts(ctx, opts)
		if err != nil {
			return nil, err
		}
		posts = make([]models.Post, 0, len(resp.Posts))
		for _, post := range resp.Posts {
			if inCategory(&post, folded) {
				posts = append(posts, post)
			}
		}
	}

	sortNewestFirst(posts)
	return &Response{Posts: posts, Count: len(posts)}, nil
}

// PostIDs lists the ids of every post the cache knows about. When the
// index cannot be read the ids of the live eligible gists are returned.
func (e *Engine) PostIDs(ctx context.Context) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.post_ids")
	defer span.End()

	ids, err := e.store.MembersOf(ctx, keyAllPosts)
	if err != nil {
		e.logger.Warn("Post index unavailable, listing live gists", zap.Error(err))
		gists, err := e.listGists(ctx, true)
		if err != nil {
			return nil, err
		}
		ids = make([]string, 0, len(gists))
		for i := range gists {
			if Eligible(&gists[i]) {
				ids = append(ids, gists[i].ID)
			}
		}
	}

	if ids == nil {
		ids = []string{}
	}
	sort.Strings(ids)
	return ids, nil
}

// cachedPost decodes a cached post, treating undecodable entries as misses
func (e *Engine) cachedPost(ctx context.Context, id string) (*models.Post, bool) {
	raw, ok := e.cacheGet(ctx, cacheKey(keyPost, id))
	if !ok {
		return nil, false
	}
	var post models.Post
	if err := json.Unmarshal([]byte(raw), &post); err != nil {
		e.logger.Warn("Discarding undecodable cached post", zap.String("post_id", id), zap.Error(err))
		return nil, false
	}
	return &post, true
}

// postsFromIndex resolves every id in a set, skipping ids that no longer resolve
func (e *Engine) postsFromIndex(ctx context.Context, key string, opts Options) []models.Post {
	ids, err := e.store.MembersOf(ctx, key)
	if err != nil {
		e.logger.Warn("Cache index read failed, falling back to live fetch", zap.String("key", key), zap.Error(err))
		return nil
	}

	results := make([]*models.Post, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			post, err := e.FetchPostByID(ctx, id, opts)
			if err != nil {
				e.logger.Warn("Skipping unresolvable indexed post", zap.String("post_id", id), zap.Error(err))
				return
			}
			results[i] = post
		}(i, id)
	}
	wg.Wait()

	posts := make([]models.Post, 0, len(results))
	for _, post := range results {
		if post != nil {
			posts = append(posts, *post)
		}
	}
	return posts
}

func inCategory(post *models.Post, folded string) bool {
	for _, category := range post.IndexCategories() {
		if category == folded {
			return true
		}
	}
	return false
}

func sortNewestFirst(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].Metadata.Detail, posts[j].Metadata.Detail
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
