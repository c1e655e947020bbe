package models

import "time"

// GistOwner is the account that owns a gist
type GistOwner struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// GistSummary is the read-only view of a gist as listed by the provider.
// Files maps a file name to its raw content URL.
type GistSummary struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Public      bool              `json:"public"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Owner       GistOwner         `json:"owner"`
	Files       map[string]string `json:"files"`
}

// File names a gist must carry to be published as a post
const (
	MetadataFile = "meta.yml"
	PostFile     = "post.md"
	BlogTag      = "[blog]"
)
