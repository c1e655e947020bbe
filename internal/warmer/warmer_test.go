package warmer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gistblog/gistfeed/internal/feed"
	"github.com/gistblog/gistfeed/internal/gist"
)

type fakeRefresher struct {
	mu    sync.Mutex
	opts  []feed.Options
	err   error
	calls chan struct{}
}

func (f *fakeRefresher) FetchPosts(_ context.Context, opts feed.Options) (*feed.Response, error) {
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	f.calls <- struct{}{}
	if f.err != nil {
		return nil, f.err
	}
	return &feed.Response{Count: 2}, nil
}

func TestRunRefreshesUntilCancelled(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "healthy upstream"},
		{name: "failing upstream", err: gist.ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refresher := &fakeRefresher{err: tt.err, calls: make(chan struct{}, 16)}
			w := New(refresher, 10*time.Millisecond)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- w.Run(ctx) }()

			for i := 0; i < 2; i++ {
				select {
				case <-refresher.calls:
				case <-time.After(2 * time.Second):
					t.Fatalf("refresh %d did not happen", i+1)
				}
			}
			cancel()

			select {
			case err := <-done:
				if !errors.Is(err, context.Canceled) {
					t.Errorf("Run() error = %v, want context.Canceled", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Run() did not stop after cancel")
			}

			refresher.mu.Lock()
			defer refresher.mu.Unlock()
			for _, opts := range refresher.opts {
				if !opts.IgnoreCached || opts.ReturnPostText {
					t.Errorf("refresh options = %+v, want ignoreCached without text", opts)
				}
			}
		})
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	w := New(&fakeRefresher{}, 0)
	if w.interval != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", w.interval)
	}
}
