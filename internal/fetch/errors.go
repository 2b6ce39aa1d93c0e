package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
)

// UpstreamError is a non-success response from the TMDB API. The body is kept
// verbatim; it is not interpreted beyond the status code.
type UpstreamError struct {
	Code int
	Path string
	Body string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("TMDB API error (status %d) for %s: %s", e.Code, e.Path, e.Body)
}

// StatusCode lets the retry package classify the error.
func (e *UpstreamError) StatusCode() int {
	return e.Code
}

func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized
	case ErrRateLimited:
		return e.Code == http.StatusTooManyRequests
	}
	return false
}
