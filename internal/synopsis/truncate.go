package synopsis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gistblog/gistfeed/pkg/config"
	"github.com/gistblog/gistfeed/pkg/logging"
)

// Placeholder is returned by the truncator when truncation is switched off
const Placeholder = "this synopsizer is not currently implemented"

// Truncator builds a synopsis from the leading words of the post.
// With words <= 0 it always returns Placeholder.
type Truncator struct {
	words  int
	store  Store
	logger *zap.Logger
}

// NewTruncator creates the truncation strategy
func NewTruncator(words int, store Store) *Truncator {
	return &Truncator{
		words:  words,
		store:  store,
		logger: logging.WithComponent("synopsizer").With(zap.String("strategy", string(KindTextTruncator))),
	}
}

func newTruncatorFromConfig(cfg *config.SynopsisConfig, store Store) (Generator, error) {
	return NewTruncator(cfg.TruncateWords, store), nil
}

// GenerateSynopsis never fails
func (t *Truncator) GenerateSynopsis(ctx context.Context, text string) (string, error) {
	if t.words <= 0 {
		return Placeholder, nil
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Placeholder, nil
	}

	tokens := []string{fmt.Sprintf("truncate:%d", t.words)}
	if cached, ok := cachedSynopsis(ctx, t.store, t.logger, text, tokens); ok {
		return cached, nil
	}

	synopsis := strings.Join(fields, " ")
	if len(fields) > t.words {
		synopsis = strings.Join(fields[:t.words], " ") + "…"
	}

	storeSynopsis(ctx, t.store, t.logger, text, synopsis, tokens)
	return synopsis, nil
}
