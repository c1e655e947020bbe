package api

import (
	"errors"
	"fmt"

	"github.com/gistblog/gistfeed/internal/feed"
	"github.com/gistblog/gistfeed/internal/gist"
	"github.com/gistblog/gistfeed/internal/synopsis"
)

// Standard JSON-RPC error codes
const (
	ErrParseError     = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternalError  = -32603
)

// Application error codes, in the JSON-RPC server error range
const (
	ErrPostNotFound        = -32001
	ErrUpstreamUnavailable = -32002
	ErrMissingPostContent  = -32003
	ErrSynopsisUnavailable = -32004
)

// Error represents an API error
type Error struct {
	Code    int
	Message string
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// InvalidParams reports a malformed or incomplete params object
func InvalidParams(format string, args ...interface{}) *Error {
	return NewError(ErrInvalidParams, fmt.Sprintf(format, args...))
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// classify maps a method error onto a JSON-RPC code and public message
func classify(err error) (int, string) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code, apiErr.Message
	case errors.Is(err, feed.ErrPostNotFound):
		return ErrPostNotFound, "Post not found"
	case errors.Is(err, feed.ErrMissingPostContent):
		return ErrMissingPostContent, "Post content missing"
	case errors.Is(err, synopsis.ErrSynopsisGenerationFailed):
		return ErrSynopsisUnavailable, "Synopsis unavailable"
	case errors.Is(err, gist.ErrUpstreamUnavailable), errors.Is(err, gist.ErrGistNotFound):
		return ErrUpstreamUnavailable, "Upstream unavailable"
	default:
		return ErrInternalError, "Internal error"
	}
}
