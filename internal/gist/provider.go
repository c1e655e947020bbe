package gist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"go.uber.org/zap"

	"github.com/gistblog/gistfeed/internal/models"
	"github.com/gistblog/gistfeed/pkg/config"
	"github.com/gistblog/gistfeed/pkg/logging"
	"github.com/gistblog/gistfeed/pkg/telemetry"
)

var (
	// ErrUpstreamUnavailable is returned when GitHub or a raw content URL cannot serve a request
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrGistNotFound is returned when a single gist lookup gets a 404
	ErrGistNotFound = errors.New("gist not found")
	// ErrContentTooLarge is returned when a raw file is larger than maxRawBytes
	ErrContentTooLarge = fmt.Errorf("%w: raw content too large", ErrUpstreamUnavailable)
)

const maxRawBytes = 5 << 20

// Provider talks to the GitHub gist API and fetches raw gist file content
type Provider struct {
	client  *github.Client
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Provider authenticated with the configured token
func New(cfg *config.GitHubConfig) (*Provider, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: github token is required", config.ErrConfiguration)
	}

	httpClient := &http.Client{}
	client := github.NewClient(httpClient).WithAuthToken(cfg.Token)
	if cfg.APIURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.APIURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("%w: invalid github_api_url: %v", config.ErrConfiguration, err)
		}
		client.BaseURL = base
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Provider{
		client:  client,
		http:    httpClient,
		timeout: timeout,
		logger:  logging.WithComponent("gist-provider"),
	}, nil
}

// AuthenticatedLogin returns the login of the account the token belongs to
func (p *Provider) AuthenticatedLogin(ctx context.Context) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "gist.authenticated_login")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	user, _, err := p.client.Users.Get(ctx, "")
	if err != nil {
		return "", handleGithubError("getting authenticated user", err)
	}
	return user.GetLogin(), nil
}

// ListGists lists every gist of the authenticated account, following pagination
func (p *Provider) ListGists(ctx context.Context) ([]models.GistSummary, error) {
	ctx, span := telemetry.StartSpan(ctx, "gist.list")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	opts := &github.GistListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var out []models.GistSummary
	for {
		gists, resp, err := p.client.Gists.List(ctx, "", opts)
		if err != nil {
			return nil, handleGithubError("listing gists", err)
		}
		for _, g := range gists {
			out = append(out, toSummary(g))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	p.logger.Debug("Listed gists", zap.Int("count", len(out)))
	return out, nil
}

// GetGist fetches a single gist by id
func (p *Provider) GetGist(ctx context.Context, id string) (*models.GistSummary, error) {
	ctx, span := telemetry.StartSpan(ctx, "gist.get")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	g, _, err := p.client.Gists.Get(ctx, id)
	if err != nil {
		var errResp *github.ErrorResponse
		if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrGistNotFound, id)
		}
		return nil, handleGithubError(fmt.Sprintf("getting gist %s", id), err)
	}
	summary := toSummary(g)
	return &summary, nil
}

// FetchRaw downloads the body behind a gist raw URL
func (p *Provider) FetchRaw(ctx context.Context, rawURL string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "gist.fetch_raw")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", rawURL, err)
	}

	p.logger.Debug("Fetching raw content", zap.String("url", rawURL))
	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetching %s: %v", ErrUpstreamUnavailable, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: fetching %s: status %d", ErrUpstreamUnavailable, rawURL, resp.StatusCode)
	}

	// Read one byte past the limit so an oversized body is rejected, not cut
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRawBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", ErrUpstreamUnavailable, rawURL, err)
	}
	if len(body) > maxRawBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrContentTooLarge, rawURL, maxRawBytes)
	}
	return string(body), nil
}

func toSummary(g *github.Gist) models.GistSummary {
	files := make(map[string]string, len(g.Files))
	for name, f := range g.Files {
		files[string(name)] = f.GetRawURL()
	}
	owner := g.GetOwner()
	return models.GistSummary{
		ID:          g.GetID(),
		Description: g.GetDescription(),
		Public:      g.GetPublic(),
		CreatedAt:   g.GetCreatedAt().Time,
		UpdatedAt:   g.GetUpdatedAt().Time,
		Owner: models.GistOwner{
			Login:     owner.GetLogin(),
			Name:      owner.GetName(),
			Email:     owner.GetEmail(),
			AvatarURL: owner.GetAvatarURL(),
		},
		Files: files,
	}
}

// handleGithubError turns go-github errors into ErrUpstreamUnavailable with the operation attached
func handleGithubError(op string, err error) error {
	if err == nil {
		return nil
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return fmt.Errorf("%w: github: %s failed with status %d: %s", ErrUpstreamUnavailable, op, errResp.Response.StatusCode, errResp.Message)
	}

	return fmt.Errorf("%w: github: %s failed: %v", ErrUpstreamUnavailable, op, err)
}
