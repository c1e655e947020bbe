// Package feed turns tagged gists into blog posts and keeps the post cache,
// its raw source documents and its secondary indexes coherent.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gistblog/gistfeed/internal/cache"
	"github.com/gistblog/gistfeed/internal/models"
	"github.com/gistblog/gistfeed/internal/synopsis"
	"github.com/gistblog/gistfeed/pkg/logging"
	"github.com/gistblog/gistfeed/pkg/telemetry"
)

var (
	// ErrMissingPostContent is returned when an eligible gist has no retrievable post.md body
	ErrMissingPostContent = errors.New("missing post content")
	// ErrPostNotFound is returned when a single post lookup finds nothing, cached or live
	ErrPostNotFound = errors.New("post not found")
)

// Cache key namespaces
const (
	keyAllPosts    = "postFeed:allPosts"
	keyPost        = "postFeed:post"
	keyPostSlug    = "postFeed:postSlug"
	keyCategory    = "postFeed:category"
	keyRawMetadata = "postFeed:rawMetadata"
	keyRawPost     = "postFeed:rawPost"
	keyRawGists    = "postFeed:rawGists"
)

var (
	cacheHits    = telemetry.NewCounter("gistfeed.cache.hits", "Post feed cache hits")
	cacheMisses  = telemetry.NewCounter("gistfeed.cache.misses", "Post feed cache misses")
	gistFailures = telemetry.NewCounter("gistfeed.gist.failures", "Gists that failed conversion to a post")
)

// Store is the cache surface the engine reads and writes
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, opts *cache.SetOptions) error
	AddToSet(ctx context.Context, key string, values ...string) (int64, error)
	MembersOf(ctx context.Context, key string) ([]string, error)
}

// Source lists gists and fetches their raw files
type Source interface {
	AuthenticatedLogin(ctx context.Context) (string, error)
	ListGists(ctx context.Context) ([]models.GistSummary, error)
	GetGist(ctx context.Context, id string) (*models.GistSummary, error)
	FetchRaw(ctx context.Context, rawURL string) (string, error)
}

// Options controls a feed query
type Options struct {
	// IgnoreCached skips every cache read; cache writes still happen
	IgnoreCached bool
	// ReturnPostText keeps the raw markdown on returned posts
	ReturnPostText bool
}

// DefaultOptions reads through the cache and returns full posts
func DefaultOptions() Options {
	return Options{ReturnPostText: true}
}

// PingResult reports gist provider connectivity
type PingResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is an assembled feed
type Response struct {
	Posts []models.Post `json:"posts"`
	Count int           `json:"count"`
}

// Settings tunes caching behavior
type Settings struct {
	// GistsTTL bounds how long the whole gist listing is served from cache
	GistsTTL time.Duration
	// AwaitCacheWrites makes post cache writes finish before a query returns
	AwaitCacheWrites bool
	// WriteTimeout bounds background cache writes
	WriteTimeout time.Duration
}

// Engine is the post feed
type Engine struct {
	source     Source
	store      Store
	synopsizer synopsis.Generator
	settings   Settings
	logger     *zap.Logger

	// pending tracks passthrough cache writes still in flight.
	// closed is guarded by mu and stops new writes once Close starts.
	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// New creates an Engine. store may be a disabled cache; every cache failure degrades to a live fetch.
func New(source Source, store Store, synopsizer synopsis.Generator, settings Settings) *Engine {
	if settings.GistsTTL <= 0 {
		settings.GistsTTL = time.Hour
	}
	if settings.WriteTimeout <= 0 {
		settings.WriteTimeout = 10 * time.Second
	}
	return &Engine{
		source:     source,
		store:      store,
		synopsizer: synopsizer,
		settings:   settings,
		logger:     logging.WithComponent("feed"),
	}
}

// Ping verifies the gist provider accepts our credentials
func (e *Engine) Ping(ctx context.Context) (*PingResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.ping")
	defer span.End()

	login, err := e.source.AuthenticatedLogin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &PingResult{
		Status:  "ok",
		Message: fmt.Sprintf("Authenticated as %s", login),
	}, nil
}

// Wait blocks until every background cache write has finished
func (e *Engine) Wait() {
	e.pending.Wait()
}

// Close stops scheduling cache writes and waits for those in flight.
// Queries still succeed after Close; their results are just not cached.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.Wait()
	return nil
}

// beginWrite registers a passthrough write, refusing once the engine is closed
func (e *Engine) beginWrite() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.pending.Add(1)
	return true
}

func cacheKey(namespace, id string) string {
	return namespace + ":" + id
}
