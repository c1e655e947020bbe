package api

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/gistblog/gistfeed/internal/feed"
	"github.com/gistblog/gistfeed/internal/models"
)

// FeedService is the post feed as exposed over JSON-RPC
type FeedService interface {
	Ping(ctx context.Context) (*feed.PingResult, error)
	FetchPosts(ctx context.Context, opts feed.Options) (*feed.Response, error)
	FetchPostByID(ctx context.Context, id string, opts feed.Options) (*models.Post, error)
	FetchPostBySlug(ctx context.Context, slug string, opts feed.Options) (*models.Post, error)
	FetchPostsByCategory(ctx context.Context, category string, opts feed.Options) (*feed.Response, error)
	PostIDs(ctx context.Context) ([]string, error)
}

// FeedParams is the params object shared by every feed.* method
type FeedParams struct {
	ID             string `json:"id"`
	Slug           string `json:"slug"`
	Category       string `json:"category"`
	IgnoreCached   *bool  `json:"ignore_cached"`
	ReturnPostText *bool  `json:"return_post_text"`
}

// Options converts the flags to engine options; return_post_text defaults to true
func (p *FeedParams) Options() feed.Options {
	opts := feed.DefaultOptions()
	if p.IgnoreCached != nil {
		opts.IgnoreCached = *p.IgnoreCached
	}
	if p.ReturnPostText != nil {
		opts.ReturnPostText = *p.ReturnPostText
	}
	return opts
}

// FeedAPI provides the feed.* methods
type FeedAPI struct {
	service FeedService
}

// NewFeedAPI creates a new feed API
func NewFeedAPI(service FeedService) *FeedAPI {
	return &FeedAPI{service: service}
}

// parseParams decodes an optional params object; absent and null params are empty
func parseParams(raw json.RawMessage) (*FeedParams, error) {
	params := &FeedParams{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return params, nil
	}
	if err := json.Unmarshal(trimmed, params); err != nil {
		return nil, InvalidParams("params must be an object: %v", err)
	}
	return params, nil
}

// Ping handles feed.ping
func (a *FeedAPI) Ping(ctx *gin.Context, _ json.RawMessage) (interface{}, error) {
	return a.service.Ping(ctx.Request.Context())
}

// FetchPosts handles feed.fetch_posts
func (a *FeedAPI) FetchPosts(ctx *gin.Context, raw json.RawMessage) (interface{}, error) {
	params, err := parseParams(raw)
	if err != nil {
		return nil, err
	}
	return a.service.FetchPosts(ctx.Request.Context(), params.Options())
}

// FetchPostByID handles feed.fetch_post_by_id
func (a *FeedAPI) FetchPostByID(ctx *gin.Context, raw json.RawMessage) (interface{}, error) {
	params, err := parseParams(raw)
	if err != nil {
		return nil, err
	}
	if params.ID == "" {
		return nil, InvalidParams("missing required parameter: id")
	}
	return a.service.FetchPostByID(ctx.Request.Context(), params.ID, params.Options())
}

// FetchPostBySlug handles feed.fetch_post_by_slug
func (a *FeedAPI) FetchPostBySlug(ctx *gin.Context, raw json.RawMessage) (interface{}, error) {
	params, err := parseParams(raw)
	if err != nil {
		return nil, err
	}
	if params.Slug == "" {
		return nil, InvalidParams("missing required parameter: slug")
	}
	return a.service.FetchPostBySlug(ctx.Request.Context(), params.Slug, params.Options())
}

// FetchPostsByCategory handles feed.fetch_posts_by_category
func (a *FeedAPI) FetchPostsByCategory(ctx *gin.Context, raw json.RawMessage) (interface{}, error) {
	params, err := parseParams(raw)
	if err != nil {
		return nil, err
	}
	if params.Category == "" {
		return nil, InvalidParams("missing required parameter: category")
	}
	return a.service.FetchPostsByCategory(ctx.Request.Context(), params.Category, params.Options())
}

// PostIDs handles feed.post_ids
func (a *FeedAPI) PostIDs(ctx *gin.Context, _ json.RawMessage) (interface{}, error) {
	return a.service.PostIDs(ctx.Request.Context())
}
