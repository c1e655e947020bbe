package synopsis

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"go.uber.org/zap"

	"github.com/gistblog/gistfeed/internal/gist"
	"github.com/gistblog/gistfeed/pkg/config"
	"github.com/gistblog/gistfeed/pkg/logging"
	"github.com/gistblog/gistfeed/pkg/telemetry"
)

const systemPrompt = `You will be given a blog post in Markdown format.
Generate a less than 100 word synopsis of the post.
You should use a fun and engaging tone, and write in the first-person perspective, as if you are the blogger.`

// Completer sends a system prompt and user text to a completion service and
// returns the text of every choice, empty where a choice carried none.
type Completer interface {
	Complete(ctx context.Context, system, user string) ([]string, error)
}

// OpenAI generates synopses through a chat completion service
type OpenAI struct {
	completer Completer
	store     Store
	logger    *zap.Logger
}

// NewOpenAI creates the AI-backed strategy
func NewOpenAI(completer Completer, store Store) *OpenAI {
	return &OpenAI{
		completer: completer,
		store:     store,
		logger:    logging.WithComponent("synopsizer").With(zap.String("strategy", string(KindOpenAI))),
	}
}

func newOpenAIFromConfig(cfg *config.SynopsisConfig, store Store) (Generator, error) {
	if cfg.OpenAIToken == "" {
		return nil, fmt.Errorf("%w: openai_token must be set to use synopsizer=%s", config.ErrConfiguration, KindOpenAI)
	}
	return NewOpenAI(newChatCompleter(cfg), store), nil
}

// GenerateSynopsis returns the cached synopsis for text or asks the completion service for one
func (o *OpenAI) GenerateSynopsis(ctx context.Context, text string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "synopsis.openai")
	defer span.End()

	tokens := []string{systemPrompt}
	if cached, ok := cachedSynopsis(ctx, o.store, o.logger, text, tokens); ok {
		o.logger.Debug("Synopsis cache hit")
		return cached, nil
	}

	choices, err := o.completer.Complete(ctx, systemPrompt, text)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %v", ErrSynopsisGenerationFailed, gist.ErrUpstreamUnavailable, err)
	}

	var synopsis string
	for _, choice := range choices {
		if strings.TrimSpace(choice) != "" {
			synopsis = strings.TrimSpace(choice)
			break
		}
	}
	if synopsis == "" {
		return "", fmt.Errorf("%w: completion returned no usable choice", ErrSynopsisGenerationFailed)
	}

	storeSynopsis(ctx, o.store, o.logger, text, synopsis, tokens)
	return synopsis, nil
}

// chatCompleter adapts the openai-go chat completions API to Completer
type chatCompleter struct {
	client openai.Client
	model  string
}

func newChatCompleter(cfg *config.SynopsisConfig) *chatCompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIToken),
		option.WithMaxRetries(0),
	}
	if base := normalizeBaseURL(cfg.OpenAIBaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return &chatCompleter{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (c *chatCompleter) Complete(ctx context.Context, system, user string) ([]string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model: shared.ChatModel(c.model),
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("empty completion response")
	}

	out := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		out = append(out, choice.Message.Content)
	}
	return out, nil
}

// normalizeBaseURL makes sure an OpenAI-compatible base URL ends in /v1
func normalizeBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}
