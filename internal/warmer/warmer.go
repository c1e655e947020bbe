// Package warmer keeps the post feed cache hot by periodically rebuilding
// the whole feed from live gists.
package warmer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gistblog/gistfeed/internal/feed"
	"github.com/gistblog/gistfeed/pkg/logging"
)

// Refresher rebuilds the feed
type Refresher interface {
	FetchPosts(ctx context.Context, opts feed.Options) (*feed.Response, error)
}

// Warmer manages the refresh loop
type Warmer struct {
	feed     Refresher
	interval time.Duration
	logger   *zap.Logger
}

// New creates a new warmer
func New(refresher Refresher, interval time.Duration) *Warmer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Warmer{
		feed:     refresher,
		interval: interval,
		logger:   logging.WithComponent("warmer"),
	}
}

// Run refreshes immediately and then once per interval until ctx is done.
// A failed refresh is logged and retried on the next tick.
func (w *Warmer) Run(ctx context.Context) error {
	w.logger.Info("Starting cache warmer", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			w.refresh(ctx)
			w.wait(ctx)
		}
	}
}

// refresh rebuilds every post, bypassing cache reads so stale entries are overwritten
func (w *Warmer) refresh(ctx context.Context) {
	start := time.Now()
	resp, err := w.feed.FetchPosts(ctx, feed.Options{IgnoreCached: true, ReturnPostText: false})
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Failed to refresh post feed", zap.Error(err))
		}
		return
	}

	w.logger.Info("Refreshed post feed",
		zap.Int("posts", resp.Count),
		zap.Duration("took", time.Since(start)))
}

// wait waits for the interval or until context is cancelled
func (w *Warmer) wait(ctx context.Context) {
	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		return
	}
}
