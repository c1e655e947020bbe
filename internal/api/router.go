package api

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gistblog/gistfeed/pkg/logging"
)

// HealthChecker is a dependency that can report its health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router sets up API routes
type Router struct {
	handler *JSONRPCHandler
	service FeedService
	checks  map[string]HealthChecker
	logger  *zap.Logger
}

// NewRouter creates a new API router. checks are reported on /health by name.
func NewRouter(service FeedService, checks map[string]HealthChecker) *Router {
	router := &Router{
		handler: NewJSONRPCHandler(),
		service: service,
		checks:  checks,
		logger:  logging.WithComponent("api-router"),
	}

	router.registerMethods()

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.POST("/", r.handler.Handle)
}

// registerMethods registers all API methods
func (r *Router) registerMethods() {
	feedAPI := NewFeedAPI(r.service)

	r.handler.RegisterMethod("feed.ping", feedAPI.Ping)
	r.handler.RegisterMethod("feed.fetch_posts", feedAPI.FetchPosts)
	r.handler.RegisterMethod("feed.fetch_post_by_id", feedAPI.FetchPostByID)
	r.handler.RegisterMethod("feed.fetch_post_by_slug", feedAPI.FetchPostBySlug)
	r.handler.RegisterMethod("feed.fetch_posts_by_category", feedAPI.FetchPostsByCategory)
	r.handler.RegisterMethod("feed.post_ids", feedAPI.PostIDs)

	r.logger.Debug("Registered JSON-RPC methods", zap.Strings("methods", r.handler.Methods()))
}

// healthHandler reports each cache; an unhealthy cache only degrades the status
func (r *Router) healthHandler(c *gin.Context) {
	status := "OK"
	caches := gin.H{}

	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := r.checks[name].Health(c.Request.Context()); err != nil {
			r.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			caches[name] = err.Error()
			status = "DEGRADED"
			continue
		}
		caches[name] = "OK"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"service": "gistfeed-api",
		"caches":  caches,
	})
}
