package models

import (
	"strings"
	"time"
)

// Post is a materialized blog post
type Post struct {
	Metadata PostMetadata `json:"metadata"`
	Synopsis string       `json:"synopsis"`
	Text     string       `json:"text,omitempty"`
	HTML     string       `json:"html,omitempty"`
}

// PostMetadata combines author-declared fields from meta.yml with the
// computed detail block and content metrics.
type PostMetadata struct {
	Categories []string     `json:"categories" yaml:"categories"`
	Title      string       `json:"title" yaml:"title"`
	CoverImage string       `json:"coverImage,omitempty" yaml:"coverImage"`
	Slug       string       `json:"slug,omitempty" yaml:"slug"`
	Synopsis   string       `json:"synopsis,omitempty" yaml:"synopsis"`
	Detail     PostDetail   `json:"detail" yaml:"-"`
	Metrics    *PostMetrics `json:"metrics,omitempty" yaml:"-"`
}

// PostDetail is derived from the originating gist, never from meta.yml
type PostDetail struct {
	Author      PostAuthor `json:"author"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Description string     `json:"description"`
	ETag        string     `json:"etag"`
	ID          string     `json:"id"`
	IsPublic    bool       `json:"isPublic"`
}

// PostAuthor is the gist owner as shown on the post
type PostAuthor struct {
	AvatarURL string `json:"avatarUrl,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
}

// PostMetrics is populated once the post text has been loaded
type PostMetrics struct {
	MinutesRead float64 `json:"minutesRead"`
	WordCount   int     `json:"wordCount"`
}

// ID returns the post identity, the originating gist id
func (p *Post) ID() string {
	return p.Metadata.Detail.ID
}

// IndexCategories returns the case-folded categories used for indexing
func (p *Post) IndexCategories() []string {
	seen := make(map[string]struct{}, len(p.Metadata.Categories))
	out := make([]string, 0, len(p.Metadata.Categories))
	for _, category := range p.Metadata.Categories {
		folded := strings.ToLower(strings.TrimSpace(category))
		if folded == "" {
			continue
		}
		if _, ok := seen[folded]; ok {
			continue
		}
		seen[folded] = struct{}{}
		out = append(out, folded)
	}
	return out
}

// WithoutText returns a shallow copy of the post with the raw text stripped
func (p Post) WithoutText() Post {
	p.Text = ""
	return p
}
