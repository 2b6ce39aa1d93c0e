// Package fetch executes resolved TMDB targets. It caches response bodies by
// target key, collapses concurrent requests for the same key into one upstream
// call, and tracks a loading/success/error status per key.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marco/cinedex/internal/endpoint"
	"github.com/marco/cinedex/internal/fetch/cache"
	"github.com/marco/cinedex/internal/metrics"
	"github.com/marco/cinedex/internal/retry"
)

const maxBodyBytes = 10 << 20

// Config holds configuration for the fetch client.
type Config struct {
	HTTPClient     *http.Client
	Cache          cache.Cache
	TTL            time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	RateLimitDelay time.Duration
	ForceRefresh   bool
	Logger         *slog.Logger
}

// Client fetches targets from the upstream API.
type Client struct {
	httpClient   *http.Client
	cache        cache.Cache
	ttl          time.Duration
	policy       retry.Policy
	rateDelay    time.Duration
	forceRefresh bool
	log          *slog.Logger

	group singleflight.Group

	mu     sync.Mutex
	states map[string]State
	// gen advances on every invalidation; loads started under an older
	// generation do not write to the cache.
	gen uint64
}

// Result is a fetched payload. Data is the upstream body, unparsed.
type Result struct {
	Key       string          `json:"-"`
	Data      json.RawMessage `json:"data"`
	Status    Status          `json:"status"`
	FromCache bool            `json:"cached"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// New creates a client. A nil cache disables caching.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Client{
		httpClient:   cfg.HTTPClient,
		cache:        cfg.Cache,
		ttl:          cfg.TTL,
		rateDelay:    cfg.RateLimitDelay,
		forceRefresh: cfg.ForceRefresh,
		log:          cfg.Logger,
		states:       make(map[string]State),
	}
	c.policy = retry.Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		Notify: func(attempt int, backoff time.Duration, err error) {
			c.log.Warn("retrying upstream request",
				"attempt", attempt,
				"max_attempts", cfg.MaxAttempts,
				"backoff", backoff,
				"error", err,
			)
		},
	}
	return c
}

// Fetch returns the payload for t, from cache when possible.
func (c *Client) Fetch(ctx context.Context, t endpoint.Target) (*Result, error) {
	key := t.Key()

	if data, fetchedAt, found := c.getFromCache(ctx, key); found {
		c.setState(key, StatusSuccess, nil)
		return &Result{Key: key, Data: data, Status: StatusSuccess, FromCache: true, FetchedAt: fetchedAt}, nil
	}
	return c.load(ctx, t)
}

// Refetch ignores any cached entry and replaces it with a fresh response.
func (c *Client) Refetch(ctx context.Context, t endpoint.Target) (*Result, error) {
	return c.load(ctx, t)
}

// Status reports the last known state for t.
func (c *Client) Status(t endpoint.Target) Status {
	return c.state(t.Key()).Status
}

// LastError returns the error from the last failed load of t, if any.
func (c *Client) LastError(t endpoint.Target) error {
	return c.state(t.Key()).Err
}

// Invalidate drops the cached entry for t. The next Fetch goes upstream.
func (c *Client) Invalidate(ctx context.Context, t endpoint.Target) error {
	key := t.Key()
	c.mu.Lock()
	delete(c.states, key)
	c.gen++
	c.mu.Unlock()
	c.group.Forget(key)

	if c.cache == nil {
		return nil
	}
	if err := c.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", key, err)
	}
	c.log.Debug("cache entry invalidated", "key", key)
	return nil
}

// InvalidateAll drops every cached entry and forgets all states.
func (c *Client) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	var loading []string
	for key, st := range c.states {
		if st.Status == StatusLoading {
			loading = append(loading, key)
		}
	}
	c.states = make(map[string]State)
	c.gen++
	c.mu.Unlock()
	for _, key := range loading {
		c.group.Forget(key)
	}

	if c.cache == nil {
		return nil
	}
	if err := c.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	c.log.Info("cache cleared")
	return nil
}

// load performs at most one upstream request per key at a time. Callers that
// arrive while a request is in flight wait for its result. The shared request
// is detached from the first caller's cancellation; each caller still returns
// as soon as its own ctx is done. A response that arrives after an
// invalidation is returned to its callers but not cached.
func (c *Client) load(ctx context.Context, t endpoint.Target) (*Result, error) {
	key := t.Key()

	ch := c.group.DoChan(key, func() (any, error) {
		detached := context.WithoutCancel(ctx)
		gen := c.generation()
		c.setStateIf(gen, key, StatusLoading, nil)

		data, err := c.doRequestWithRetry(detached, t)
		if err != nil {
			c.setStateIf(gen, key, StatusError, err)
			return nil, err
		}

		now := time.Now()
		if c.setStateIf(gen, key, StatusSuccess, nil) {
			c.setToCache(detached, key, data, now)
			if c.generation() != gen {
				// Invalidated while writing.
				c.deleteFromCache(detached, key)
			}
		} else {
			c.log.Debug("discarding response fetched before invalidation", "key", key)
		}
		return &Result{Key: key, Data: data, Status: StatusSuccess, FetchedAt: now}, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.SharedFetches.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		r := *res.Val.(*Result)
		return &r, nil
	}
}

// doRequestWithRetry executes a GET for t with retry logic and returns the body
func (c *Client) doRequestWithRetry(ctx context.Context, t endpoint.Target) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	}()

	var body []byte
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL(), nil)
		if err != nil {
			return fmt.Errorf("failed to build request for %s: %w", t.Path, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.UpstreamRequests.WithLabelValues("error").Inc()
			// *url.Error embeds the full URL, credential included.
			return fmt.Errorf("request to %s failed: %w", t.Path, redact(err))
		}
		defer resp.Body.Close()

		metrics.UpstreamRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("failed to read response for %s: %w", t.Path, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &UpstreamError{Code: resp.StatusCode, Path: t.Path, Body: string(data)}
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// getFromCache retrieves data from cache if available and not force-refreshing
func (c *Client) getFromCache(ctx context.Context, key string) (json.RawMessage, time.Time, bool) {
	if c.cache == nil || c.forceRefresh {
		return nil, time.Time{}, false
	}
	raw, found := c.cache.Get(ctx, key)
	if !found {
		metrics.CacheOperations.WithLabelValues("miss").Inc()
		c.log.Debug("cache miss", "key", key)
		return nil, time.Time{}, false
	}

	var entry cachedEntry
	if err := json.Unmarshal(raw, &entry); err != nil || len(entry.Data) == 0 {
		metrics.CacheOperations.WithLabelValues("miss").Inc()
		c.log.Debug("discarding unreadable cache entry", "key", key)
		return nil, time.Time{}, false
	}
	metrics.CacheOperations.WithLabelValues("hit").Inc()
	c.log.Debug("cache hit", "key", key)
	return entry.Data, entry.FetchedAt, true
}

// setToCache stores data in cache if caching is enabled
func (c *Client) setToCache(ctx context.Context, key string, data []byte, fetchedAt time.Time) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(cachedEntry{Data: data, FetchedAt: fetchedAt})
	if err != nil {
		// Upstream sent something that is not JSON; serve it but don't cache it.
		metrics.CacheOperations.WithLabelValues("set_error").Inc()
		c.log.Warn("not caching non-JSON response", "key", key, "error", err)
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		metrics.CacheOperations.WithLabelValues("set_error").Inc()
		c.log.Warn("failed to write cache entry", "key", key, "error", err)
		return
	}
	metrics.CacheOperations.WithLabelValues("set").Inc()
}

func (c *Client) deleteFromCache(ctx context.Context, key string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, key); err != nil {
		c.log.Warn("failed to drop stale cache entry", "key", key, "error", err)
	}
}

type cachedEntry struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// redact strips the query string (and with it the api_key) from URL errors.
func redact(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	u := urlErr.URL
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return &url.Error{Op: urlErr.Op, URL: u, Err: urlErr.Err}
}
