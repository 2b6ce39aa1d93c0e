package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/marco/cinedex/internal/config"
	"github.com/marco/cinedex/internal/endpoint"
)

// parseOperation turns "<operation> [args]" into a target.
func parseOperation(r *endpoint.Resolver, args []string) (endpoint.Target, error) {
	if len(args) == 0 {
		return endpoint.Target{}, errors.New("missing operation")
	}
	op, rest := args[0], args[1:]

	fs := flag.NewFlagSet(op, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	page := fs.Int("page", 1, "result page")

	switch op {
	case "genres":
		return r.Genres(), nil

	case "movies":
		search := fs.String("search", "", "search text")
		category := fs.String("category", "", "category name")
		genre := fs.Int("genre", 0, "genre id")
		positional, err := parseInterspersed(fs, rest)
		if err != nil {
			return endpoint.Target{}, fmt.Errorf("movies: %w", err)
		}
		if len(positional) > 0 {
			return endpoint.Target{}, fmt.Errorf("movies: unexpected argument %q", positional[0])
		}
		return r.ResolveMovies(endpoint.MovieListQuery{
			Search:   *search,
			Category: *category,
			Genre:    *genre,
			Page:     *page,
		}), nil

	case "movie":
		return r.MovieDetail(arg(rest, 0))

	case "recommendations":
		return r.Recommendations(arg(rest, 0), arg(rest, 1))

	case "actor":
		return r.ActorDetail(arg(rest, 0))

	case "actor-movies":
		positional, err := parseInterspersed(fs, rest)
		if err != nil {
			return endpoint.Target{}, fmt.Errorf("actor-movies: %w", err)
		}
		return r.MoviesByActor(arg(positional, 0), *page)

	case "account":
		session := fs.String("session", "", "session id")
		positional, err := parseInterspersed(fs, rest)
		if err != nil {
			return endpoint.Target{}, fmt.Errorf("account: %w", err)
		}
		return r.AccountList(arg(positional, 0), arg(positional, 1), *session, *page)

	default:
		return endpoint.Target{}, fmt.Errorf("unknown operation %q", op)
	}
}

// parseInterspersed parses fs from args, allowing flags before, between and
// after positional arguments. It returns the positional arguments in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// runResolve prints the credential-free request key.
func runResolve(cfg *config.Config, args []string, out io.Writer) error {
	r, err := endpoint.New(endpoint.Config{APIKey: cfg.TMDB.APIKey, BaseURL: cfg.TMDB.BaseURL})
	if err != nil {
		return err
	}
	t, err := parseOperation(r, args)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, t.Key())
	return nil
}

func runFetch(cfg *config.Config, args []string, out io.Writer) error {
	resolver, client, c, err := setup(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	t, err := parseOperation(resolver, args)
	if err != nil {
		return err
	}

	timeout := 2 * cfg.TMDB.Timeout()
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := client.Fetch(ctx, t)
	if err != nil {
		return err
	}
	slog.Debug("fetched", "key", res.Key, "cached", res.FromCache)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// runWarm prefetches the refresh targets, reporting progress every two seconds.
func runWarm(cfg *config.Config) error {
	resolver, client, c, err := setup(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	targets := refreshTargets(resolver, cfg.Refresh)
	start := time.Now()
	slog.Info("warming cache", "targets", len(targets), "workers", cfg.Refresh.Workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	purgeExpired(ctx, c)

	var processed int64
	total := int64(len(targets))
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				current := atomic.LoadInt64(&processed)
				if current > 0 && current < total {
					slog.Info("progress", "processed", current, "total", total,
						"percent", fmt.Sprintf("%.0f%%", float64(current)/float64(total)*100))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	results := client.Prefetch(ctx, targets, cfg.Refresh.Workers, &processed)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			slog.Error("failed to warm target", "key", res.Target.Key(), "error", res.Err)
		}
	}

	fmt.Printf("Warmed %d/%d targets in %s\n", len(results)-failed, len(results), time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		return fmt.Errorf("%d targets failed", failed)
	}
	return nil
}
