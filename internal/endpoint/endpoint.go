// Package endpoint maps logical TMDB requests to concrete request targets.
//
// Nothing in this package performs I/O. A Resolver is built once from an
// immutable Config and every operation is a deterministic function of its
// inputs plus that Config.
package endpoint

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the TMDB v3 API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

const (
	// ListRecommendations and ListSimilar are the list kinds TMDB serves under
	// /movie/{id}/. Other values are forwarded unchanged.
	ListRecommendations = "recommendations"
	ListSimilar         = "similar"

	detailAppend = "videos,credits"
)

var (
	// ErrMissingCredential is returned by New when no API key is configured.
	ErrMissingCredential = errors.New("TMDB API key is required")

	// ErrMissingIdentifier is returned when a required path identifier is empty.
	ErrMissingIdentifier = errors.New("missing identifier")
)

// Config holds the process-wide settings a Resolver is built from.
type Config struct {
	APIKey  string
	BaseURL string
}

// Resolver turns request descriptions into Targets.
type Resolver struct {
	apiKey  string
	baseURL string
}

// New validates cfg and returns a Resolver. It fails fast when the API key
// is absent so that no request can ever be built without a credential.
func New(cfg Config) (*Resolver, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrMissingCredential
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}

	return &Resolver{apiKey: key, baseURL: base}, nil
}

// Target is a resolved upstream request: a resource path relative to the API
// root plus query parameters. The credential is not part of Query; it is added
// by URL.
type Target struct {
	Path  string
	Query url.Values

	baseURL string
	apiKey  string
}

// URL returns the absolute request URL including the api_key parameter.
func (t Target) URL() string {
	q := url.Values{}
	for k, v := range t.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("api_key", t.apiKey)
	return t.baseURL + t.Path + "?" + q.Encode()
}

// Key returns a canonical, credential-free serialization of the target,
// suitable as a cache key.
func (t Target) Key() string {
	if len(t.Query) == 0 {
		return t.Path
	}
	return t.Path + "?" + t.Query.Encode()
}

func (t Target) String() string {
	return t.Key()
}

func (r *Resolver) target(path string, query url.Values) Target {
	if query == nil {
		query = url.Values{}
	}
	return Target{
		Path:    path,
		Query:   query,
		baseURL: r.baseURL,
		apiKey:  r.apiKey,
	}
}

// Genres resolves the movie genre list.
func (r *Resolver) Genres() Target {
	return r.target("/genre/movie/list", nil)
}

// Movies resolves a movie listing. The selector decides the branch; nil falls
// back to popular movies. Empty search text or category name counts as absent,
// as does a zero genre id. page is passed through unvalidated.
func (r *Resolver) Movies(sel Selector, page int) Target {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))

	switch s := normalize(sel).(type) {
	case SearchText:
		q.Set("query", string(s))
		return r.target("/search/movie", q)
	case CategoryName:
		return r.target("/movie/"+url.PathEscape(string(s)), q)
	case GenreID:
		q.Set("with_genres", strconv.Itoa(int(s)))
		return r.target("/discover/movie", q)
	default:
		return r.target("/movie/popular", q)
	}
}

// MovieDetail resolves a single movie with its videos and credits appended.
// Existence is not checked here; an unknown id fails upstream.
func (r *Resolver) MovieDetail(movieID string) (Target, error) {
	if err := require("movie id", movieID); err != nil {
		return Target{}, err
	}
	q := url.Values{}
	q.Set("append_to_response", detailAppend)
	return r.target("/movie/"+url.PathEscape(movieID), q), nil
}

// Recommendations resolves a list related to a movie, e.g. "recommendations"
// or "similar". listKind is not checked against a fixed set.
func (r *Resolver) Recommendations(movieID, listKind string) (Target, error) {
	if err := require("movie id", movieID); err != nil {
		return Target{}, err
	}
	if listKind == "" {
		listKind = ListRecommendations
	}
	return r.target("/movie/"+url.PathEscape(movieID)+"/"+url.PathEscape(listKind), nil), nil
}

// ActorDetail resolves a person record.
func (r *Resolver) ActorDetail(actorID string) (Target, error) {
	if err := require("actor id", actorID); err != nil {
		return Target{}, err
	}
	return r.target("/person/"+url.PathEscape(actorID), nil), nil
}

// MoviesByActor resolves movies featuring the given actor.
func (r *Resolver) MoviesByActor(actorID string, page int) (Target, error) {
	if err := require("actor id", actorID); err != nil {
		return Target{}, err
	}
	q := url.Values{}
	q.Set("with_cast", actorID)
	q.Set("page", strconv.Itoa(page))
	return r.target("/discover/movie", q), nil
}

// AccountList resolves one of a user's account lists. listName may contain
// slashes (e.g. "favorite/movies"); each segment is escaped on its own. The
// session token is forwarded as-is; an expired or empty one fails upstream.
func (r *Resolver) AccountList(accountID, listName, sessionID string, page int) (Target, error) {
	if err := require("account id", accountID); err != nil {
		return Target{}, err
	}
	if err := require("list name", listName); err != nil {
		return Target{}, err
	}
	q := url.Values{}
	q.Set("session_id", sessionID)
	q.Set("page", strconv.Itoa(page))
	return r.target("/account/"+url.PathEscape(accountID)+"/"+escapeSegments(listName), q), nil
}

func require(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", ErrMissingIdentifier, field)
	}
	return nil
}

func escapeSegments(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
