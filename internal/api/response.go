package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/marco/cinedex/internal/endpoint"
	"github.com/marco/cinedex/internal/fetch"
	"github.com/marco/cinedex/internal/metrics"
)

type envelope struct {
	Status         string          `json:"status"`
	Cached         bool            `json:"cached,omitempty"`
	FetchedAt      *time.Time      `json:"fetched_at,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Error          string          `json:"error,omitempty"`
	UpstreamStatus int             `json:"upstream_status,omitempty"`
	Upstream       json.RawMessage `json:"upstream,omitempty"`
}

func (s *Server) serveTarget(w http.ResponseWriter, r *http.Request, op string, t endpoint.Target) {
	res, err := s.fetcher.Fetch(r.Context(), t)
	if err != nil {
		s.fetchError(w, r, op, err)
		return
	}

	env := envelope{
		Status: fetch.StatusSuccess.String(),
		Cached: res.FromCache,
		Data:   res.Data,
	}
	if !res.FetchedAt.IsZero() {
		fetchedAt := res.FetchedAt.UTC()
		env.FetchedAt = &fetchedAt
	}
	if !json.Valid(res.Data) {
		// Keep the envelope valid JSON even if upstream was not.
		quoted, _ := json.Marshal(string(res.Data))
		env.Data = quoted
	}

	recordRequest(op, http.StatusOK)
	writeJSON(w, http.StatusOK, env)
}

// fetchError passes upstream status codes through; everything else is a
// gateway failure.
func (s *Server) fetchError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var upErr *fetch.UpstreamError
	switch {
	case errors.As(err, &upErr):
		env := envelope{
			Status:         fetch.StatusError.String(),
			Error:          fmt.Sprintf("upstream returned status %d", upErr.Code),
			UpstreamStatus: upErr.Code,
		}
		if json.Valid([]byte(upErr.Body)) {
			env.Upstream = json.RawMessage(upErr.Body)
		}
		s.logger.Warn("upstream error", "operation", op, "status", upErr.Code, "path", upErr.Path)
		recordRequest(op, upErr.Code)
		writeJSON(w, upErr.Code, env)
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, r, op, http.StatusGatewayTimeout, "upstream request timed out", err)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
		recordRequest(op, 499)
	default:
		s.writeError(w, r, op, http.StatusBadGateway, "upstream request failed", err)
	}
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.writeError(w, r, op, http.StatusBadRequest, err.Error(), nil)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, status int, msg string, err error) {
	if err != nil {
		s.logger.Error("request failed",
			"operation", op,
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	if op != "" {
		recordRequest(op, status)
	}
	writeJSON(w, status, envelope{Status: fetch.StatusError.String(), Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func recordRequest(op string, status int) {
	metrics.HTTPRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
}

// readPage parses the page parameter. Absent means 1; any other integer is
// passed through for upstream to judge.
func readPage(r *http.Request) (int, error) {
	return readInt(r.URL.Query().Get("page"), "page", 1)
}

func readInt(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}
