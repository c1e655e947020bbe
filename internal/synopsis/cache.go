package synopsis

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/gistblog/gistfeed/internal/cache"
)

const keyPrefix = "synopsizer:"

// cacheKey digests the text together with the context tokens that shaped the synopsis
func cacheKey(text string, tokens []string) string {
	if len(tokens) == 0 {
		return keyPrefix + cache.Digest(text)
	}
	return keyPrefix + cache.Digest(text+strings.Join(tokens, ","))
}

// cachedSynopsis looks up a stored synopsis. Cache failures count as misses.
func cachedSynopsis(ctx context.Context, store Store, logger *zap.Logger, text string, tokens []string) (string, bool) {
	if store == nil {
		return "", false
	}
	key := cacheKey(text, tokens)
	val, ok, err := store.Get(ctx, key)
	if err != nil {
		logger.Warn("Synopsis cache read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return val, ok
}

func storeSynopsis(ctx context.Context, store Store, logger *zap.Logger, text, synopsis string, tokens []string) {
	if store == nil {
		return
	}
	key := cacheKey(text, tokens)
	if err := store.Set(ctx, key, synopsis, nil); err != nil {
		logger.Warn("Synopsis cache write failed", zap.String("key", key), zap.Error(err))
	}
}
