// Package api serves the resolver's operations over HTTP. Each handler
// resolves a target, hands it to the fetcher, and wraps the raw upstream
// payload in a status envelope.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marco/cinedex/internal/endpoint"
	"github.com/marco/cinedex/internal/fetch"
)

// Fetcher executes resolved targets.
type Fetcher interface {
	Fetch(ctx context.Context, t endpoint.Target) (*fetch.Result, error)
	InvalidateAll(ctx context.Context) error
}

type Server struct {
	resolver *endpoint.Resolver
	fetcher  Fetcher
	logger   *slog.Logger
}

func NewServer(resolver *endpoint.Resolver, fetcher Fetcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{resolver: resolver, fetcher: fetcher, logger: logger}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthcheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/genres", s.getGenres)
		r.Get("/movies", s.listMovies)
		r.Get("/movies/{movieID}", s.getMovie)
		r.Get("/movies/{movieID}/{listKind}", s.getMovieList)
		r.Get("/people/{actorID}", s.getActor)
		r.Get("/people/{actorID}/movies", s.getActorMovies)
		r.Get("/accounts/{accountID}/lists/*", s.getAccountList)
		r.Post("/cache/invalidate", s.invalidateCache)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, "", http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, "", http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}

func (s *Server) healthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "available"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
