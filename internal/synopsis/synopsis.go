// Package synopsis produces short summaries of post text. Strategies are
// picked by name from configuration and share one cache namespace.
package synopsis

import (
	"context"
	"errors"
	"fmt"

	"github.com/gistblog/gistfeed/internal/cache"
	"github.com/gistblog/gistfeed/pkg/config"
)

// ErrSynopsisGenerationFailed is returned when a strategy cannot produce a synopsis
var ErrSynopsisGenerationFailed = errors.New("synopsis generation failed")

// Generator produces a synopsis for a post body
type Generator interface {
	GenerateSynopsis(ctx context.Context, text string) (string, error)
}

// Store is the slice of the cache client a strategy needs
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, opts *cache.SetOptions) error
}

// Kind names a synopsis strategy
type Kind string

const (
	KindOpenAI        Kind = config.SynopsizerOpenAI
	KindTextTruncator Kind = config.SynopsizerTextTruncator
)

type constructor func(cfg *config.SynopsisConfig, store Store) (Generator, error)

var constructors = map[Kind]constructor{
	KindOpenAI:        newOpenAIFromConfig,
	KindTextTruncator: newTruncatorFromConfig,
}

// New builds the strategy named by cfg.Strategy. An empty name selects the truncator.
func New(cfg *config.SynopsisConfig, store Store) (Generator, error) {
	kind := Kind(cfg.Strategy)
	if kind == "" {
		kind = KindTextTruncator
	}
	build, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown synopsizer %q", config.ErrConfiguration, cfg.Strategy)
	}
	return build(cfg, store)
}
