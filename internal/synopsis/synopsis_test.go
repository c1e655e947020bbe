package synopsis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gistblog/gistfeed/internal/cache"
	"github.com/gistblog/gistfeed/internal/gist"
	"github.com/gistblog/gistfeed/pkg/config"
)

type memStore struct {
	mu   sync.Mutex
	m    map[string]string
	fail bool
}

func newMemStore() *memStore { return &memStore{m: make(map[string]string)} }

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", false, cache.ErrCacheUnavailable
	}
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key, value string, _ *cache.SetOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return cache.ErrCacheUnavailable
	}
	s.m[key] = value
	return nil
}

type fakeCompleter struct {
	choices []string
	err     error
	calls   int
	system  string
}

func (f *fakeCompleter) Complete(_ context.Context, system, _ string) ([]string, error) {
	f.calls++
	f.system = system
	return f.choices, f.err
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.SynopsisConfig
		wantErr  error
		wantType string
	}{
		{name: "default", cfg: config.SynopsisConfig{}, wantType: "truncator"},
		{name: "truncator", cfg: config.SynopsisConfig{Strategy: "textTruncator"}, wantType: "truncator"},
		{name: "openai", cfg: config.SynopsisConfig{Strategy: "openai", OpenAIToken: "sk-test"}, wantType: "openai"},
		{name: "openai without token", cfg: config.SynopsisConfig{Strategy: "openai"}, wantErr: config.ErrConfiguration},
		{name: "unknown", cfg: config.SynopsisConfig{Strategy: "markov"}, wantErr: config.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := New(&tt.cfg, newMemStore())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			switch gen.(type) {
			case *Truncator:
				if tt.wantType != "truncator" {
					t.Errorf("New() = %T, want %s", gen, tt.wantType)
				}
			case *OpenAI:
				if tt.wantType != "openai" {
					t.Errorf("New() = %T, want %s", gen, tt.wantType)
				}
			default:
				t.Errorf("New() returned unexpected %T", gen)
			}
		})
	}
}

func TestCacheKey(t *testing.T) {
	plain := cacheKey("body", nil)
	withPrompt := cacheKey("body", []string{systemPrompt})

	if !strings.HasPrefix(plain, keyPrefix) || !strings.HasPrefix(withPrompt, keyPrefix) {
		t.Fatalf("keys must live under %q: %s %s", keyPrefix, plain, withPrompt)
	}
	if plain == withPrompt {
		t.Error("context tokens must change the key")
	}
	if withPrompt != keyPrefix+cache.Digest("body"+systemPrompt) {
		t.Errorf("cacheKey() = %v, want digest of text+prompt", withPrompt)
	}
	if cacheKey("body", []string{"a", "b"}) != keyPrefix+cache.Digest("bodya,b") {
		t.Error("context tokens should be joined with commas")
	}
}

func TestOpenAIGenerateSynopsis(t *testing.T) {
	store := newMemStore()
	completer := &fakeCompleter{choices: []string{"", "  I wrote about Go!  ", "second"}}
	gen := NewOpenAI(completer, store)
	ctx := context.Background()

	got, err := gen.GenerateSynopsis(ctx, "post body")
	if err != nil {
		t.Fatalf("GenerateSynopsis: %v", err)
	}
	if got != "I wrote about Go!" {
		t.Errorf("GenerateSynopsis() = %q, want first non-empty choice", got)
	}
	if completer.system != systemPrompt {
		t.Errorf("completer received system prompt %q", completer.system)
	}
	if cached := store.m[cacheKey("post body", []string{systemPrompt})]; cached != got {
		t.Errorf("synopsis not cached, store has %q", cached)
	}

	again, err := gen.GenerateSynopsis(ctx, "post body")
	if err != nil || again != got {
		t.Fatalf("second GenerateSynopsis() = %q, %v", again, err)
	}
	if completer.calls != 1 {
		t.Errorf("completer called %d times, want 1 (cache hit)", completer.calls)
	}
}

func TestOpenAIFailures(t *testing.T) {
	tests := []struct {
		name      string
		completer *fakeCompleter
		wantErrs  []error
	}{
		{
			name:      "no usable choice",
			completer: &fakeCompleter{choices: []string{"", "   "}},
			wantErrs:  []error{ErrSynopsisGenerationFailed},
		},
		{
			name:      "no choices",
			completer: &fakeCompleter{},
			wantErrs:  []error{ErrSynopsisGenerationFailed},
		},
		{
			name:      "service unreachable",
			completer: &fakeCompleter{err: errors.New("dial tcp: refused")},
			wantErrs:  []error{ErrSynopsisGenerationFailed, gist.ErrUpstreamUnavailable},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOpenAI(tt.completer, newMemStore()).GenerateSynopsis(context.Background(), "text")
			for _, want := range tt.wantErrs {
				if !errors.Is(err, want) {
					t.Errorf("GenerateSynopsis() error = %v, want %v", err, want)
				}
			}
		})
	}
}

func TestOpenAICacheUnavailable(t *testing.T) {
	store := newMemStore()
	store.fail = true
	completer := &fakeCompleter{choices: []string{"fresh"}}

	got, err := NewOpenAI(completer, store).GenerateSynopsis(context.Background(), "text")
	if err != nil || got != "fresh" {
		t.Fatalf("GenerateSynopsis() = %q, %v; want live result despite cache failure", got, err)
	}
}

func TestTruncator(t *testing.T) {
	tests := []struct {
		name     string
		words    int
		text     string
		expected string
	}{
		{"disabled", 0, "some words here", Placeholder},
		{"empty text", 3, "   ", Placeholder},
		{"shorter than limit", 5, "one two", "one two"},
		{"exact limit", 2, "one  two", "one two"},
		{"truncated", 3, "one two\nthree four five", "one two three…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTruncator(tt.words, newMemStore()).GenerateSynopsis(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("GenerateSynopsis() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("GenerateSynopsis(%q) = %q, want %q", tt.text, got, tt.expected)
			}
		})
	}
}

func TestTruncatorCachesUnderSynopsizerNamespace(t *testing.T) {
	store := newMemStore()
	if _, err := NewTruncator(2, store).GenerateSynopsis(context.Background(), "a b c"); err != nil {
		t.Fatal(err)
	}
	if len(store.m) != 1 {
		t.Fatalf("expected one cached synopsis, got %d", len(store.m))
	}
	for key := range store.m {
		if !strings.HasPrefix(key, keyPrefix) {
			t.Errorf("key %q outside synopsizer namespace", key)
		}
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"", ""},
		{"https://api.example.com", "https://api.example.com/v1"},
		{"https://api.example.com/v1/", "https://api.example.com/v1"},
		{"https://proxy.example.com/openai", "https://proxy.example.com/openai/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := normalizeBaseURL(tt.raw); got != tt.expected {
				t.Errorf("normalizeBaseURL(%q) = %v, want %v", tt.raw, got, tt.expected)
			}
		})
	}
}
