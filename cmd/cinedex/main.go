package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/marco/cinedex/internal/config"
	"github.com/marco/cinedex/internal/endpoint"
	"github.com/marco/cinedex/internal/fetch"
	"github.com/marco/cinedex/internal/fetch/cache"
)

var (
	configPath   = flag.String("config", "./config/config.yaml", "Path to configuration file (empty uses defaults and "+config.APIKeyEnv+")")
	forceRefresh = flag.Bool("force-refresh", false, "Ignore cached responses and always query TMDB")
	verbose      = flag.Bool("verbose", false, "Show detailed logging")
)

const usage = `Usage: cinedex [flags] <command> [args]

Commands:
  serve                     run the HTTP API
  resolve <operation> ...   print the request an operation resolves to
  fetch <operation> ...     fetch an operation and print the JSON payload
  warm                      prefetch the refresh targets into the cache

Operations:
  genres
  movies [-search text] [-category name] [-genre id] [-page n]
  movie <movie-id>
  recommendations <movie-id> [list-kind]
  actor <actor-id>
  actor-movies [-page n] <actor-id>
  account [-session id] [-page n] <account-id> <list-name>

Flags:
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "serve":
		err = runServe(cfg, *configPath)
	case "resolve":
		err = runResolve(cfg, args, os.Stdout)
	case "fetch":
		err = runFetch(cfg, args, os.Stdout)
	case "warm":
		err = runWarm(cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the slog handler named by the logging section. -verbose
// forces debug level.
func newLogger(lc config.LoggingConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if *verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// setup builds the resolver and a fetch client backed by the configured cache.
// The caller closes the returned cache.
func setup(cfg *config.Config) (*endpoint.Resolver, *fetch.Client, cache.Cache, error) {
	resolver, err := endpoint.New(endpoint.Config{
		APIKey:  cfg.TMDB.APIKey,
		BaseURL: cfg.TMDB.BaseURL,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	c, err := cache.Open(cache.Options{
		Backend:       cfg.Cache.Backend,
		TTL:           cfg.Cache.TTL(),
		MaxEntries:    cfg.Cache.MaxEntries,
		SQLitePath:    cfg.Cache.SQLitePath,
		RedisAddr:     cfg.Cache.RedisAddr,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
		RedisPrefix:   cfg.Cache.RedisPrefix,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open %s cache: %w", cfg.Cache.Backend, err)
	}
	slog.Debug("cache opened", "backend", cfg.Cache.Backend)

	client := fetch.New(fetch.Config{
		HTTPClient:     &http.Client{Timeout: cfg.TMDB.Timeout()},
		Cache:          c,
		TTL:            cfg.Cache.TTL(),
		MaxAttempts:    cfg.TMDB.MaxAttempts,
		InitialBackoff: cfg.TMDB.InitialBackoff(),
		RateLimitDelay: cfg.TMDB.RateLimitDelay(),
		ForceRefresh:   *forceRefresh,
		Logger:         slog.Default(),
	})
	return resolver, client, c, nil
}

// refreshTargets lists the listings kept warm by the refresher and by warm:
// the genre list plus the first pages of popular and each configured category.
func refreshTargets(r *endpoint.Resolver, rc config.RefreshConfig) []endpoint.Target {
	pages := rc.Pages
	if pages <= 0 {
		pages = 1
	}

	targets := []endpoint.Target{r.Genres()}
	for page := 1; page <= pages; page++ {
		targets = append(targets, r.Movies(nil, page))
		for _, category := range rc.Categories {
			targets = append(targets, r.Movies(endpoint.CategoryName(category), page))
		}
	}
	return targets
}

// purgeExpired drops expired entries from backends that do not expire them on
// their own.
func purgeExpired(ctx context.Context, c cache.Cache) {
	p, ok := c.(cache.Purger)
	if !ok {
		return
	}
	n, err := p.Purge(ctx)
	if err != nil {
		slog.Warn("failed to purge expired cache entries", "error", err)
		return
	}
	if n > 0 {
		slog.Info("purged expired cache entries", "count", n)
	}
}
