package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marco/cinedex/internal/api"
	"github.com/marco/cinedex/internal/config"
	"github.com/marco/cinedex/internal/fetch"
	"github.com/marco/cinedex/internal/metrics"
	"github.com/marco/cinedex/internal/watch"
)

const shutdownTimeout = 10 * time.Second

// runServe runs the HTTP API until SIGINT or SIGTERM. The refresher and the
// config watcher run alongside it when enabled.
func runServe(cfg *config.Config, path string) error {
	resolver, client, c, err := setup(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	purgeExpired(ctx, c)

	if cfg.Refresh.Enabled {
		refresher := fetch.NewRefresher(client, refreshTargets(resolver, cfg.Refresh), cfg.Refresh.Interval(), cfg.Refresh.Workers)
		go refresher.Run(ctx, *cfg.Refresh.RunOnStartup)
	}

	if cfg.Watch.Enabled && path != "" {
		w, err := watch.NewWatcher(path, cfg.Watch.Debounce(), onConfigReload(ctx, cfg, client))
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewServer(resolver, client, slog.Default()).Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		ErrorLog:     slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "cache", cfg.Cache.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// onConfigReload drops cached responses when the file changes, since TTL,
// base URL or backend settings may no longer match what is cached. Settings
// that are wired at startup only take effect after a restart.
func onConfigReload(ctx context.Context, current *config.Config, client *fetch.Client) watch.ReloadHandler {
	return func(next *config.Config) {
		if next.TMDB.APIKey != current.TMDB.APIKey {
			slog.Warn("TMDB API key changed; restart to apply")
		}
		if next.Server.Addr != current.Server.Addr || next.Cache.Backend != current.Cache.Backend {
			slog.Warn("server or cache settings changed; restart to apply")
		}
		if err := client.InvalidateAll(ctx); err != nil {
			slog.Error("failed to invalidate cache after config reload", "error", err)
			return
		}
		slog.Info("cache invalidated after config reload")
	}
}
