package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marco/cinedex/internal/endpoint"
)

func (s *Server) getGenres(w http.ResponseWriter, r *http.Request) {
	s.serveTarget(w, r, "genres", s.resolver.Genres())
}

// listMovies accepts any mix of search, category and genre; the resolver
// picks one by precedence.
func (s *Server) listMovies(w http.ResponseWriter, r *http.Request) {
	const op = "movies"
	qs := r.URL.Query()

	page, err := readPage(r)
	if err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	genre, err := readInt(qs.Get("genre"), "genre", 0)
	if err != nil {
		s.badRequest(w, r, op, err)
		return
	}

	q := endpoint.MovieListQuery{
		Search:   qs.Get("search"),
		Category: qs.Get("category"),
		Genre:    genre,
		Page:     page,
	}
	s.serveTarget(w, r, op, s.resolver.ResolveMovies(q))
}

func (s *Server) getMovie(w http.ResponseWriter, r *http.Request) {
	const op = "movie_detail"
	t, err := s.resolver.MovieDetail(chi.URLParam(r, "movieID"))
	if err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	s.serveTarget(w, r, op, t)
}

func (s *Server) getMovieList(w http.ResponseWriter, r *http.Request) {
	const op = "recommendations"
	t, err := s.resolver.Recommendations(chi.URLParam(r, "movieID"), chi.URLParam(r, "listKind"))
	if err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	s.serveTarget(w, r, op, t)
}

func (s *Server) getActor(w http.ResponseWriter, r *http.Request) {
	const op = "actor_detail"
	t, err := s.resolver.ActorDetail(chi.URLParam(r, "actorID"))
	if err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	s.serveTarget(w, r, op, t)
}

func (s *Server) getActorMovies(w http.ResponseWriter, r *http.Request) {
	const op = "movies_by_actor"
	page, err := readPage(r)
	if err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	t, err := s.resolver.MoviesByActor(chi.URLParam(r, "actorID"), page)
	if err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	s.serveTarget(w, r, op, t)
}

// getAccountList reads the session from the session_id query parameter, or
// the X-Session-ID header when the parameter is absent.
func (s *Server) getAccountList(w http.ResponseWriter, r *http.Request) {
	const op = "account_list"
	page, err := readPage(r)
	if err != nil {
		s.badRequest(w, r, op, err)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = r.Header.Get("X-Session-ID")
	}
	listName := strings.Trim(chi.URLParam(r, "*"), "/")

	t, err := s.resolver.AccountList(chi.URLParam(r, "accountID"), listName, sessionID, page)
	if err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	s.serveTarget(w, r, op, t)
}

func (s *Server) invalidateCache(w http.ResponseWriter, r *http.Request) {
	const op = "invalidate"
	if err := s.fetcher.InvalidateAll(r.Context()); err != nil {
		s.writeError(w, r, op, http.StatusInternalServerError, "failed to invalidate cache", err)
		return
	}
	recordRequest(op, http.StatusOK)
	writeJSON(w, http.StatusOK, envelope{Status: "success"})
}
