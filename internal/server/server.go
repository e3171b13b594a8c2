// Package server exposes the catalog, playback and group cache over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/snapetech/streamresolvr/internal/catalog"
	"github.com/snapetech/streamresolvr/internal/indexer"
	"github.com/snapetech/streamresolvr/internal/ledger"
	"github.com/snapetech/streamresolvr/internal/log"
	"github.com/snapetech/streamresolvr/internal/metrics"
	"github.com/snapetech/streamresolvr/internal/playback"
	"github.com/snapetech/streamresolvr/internal/provider"
)

// Catalog serves home rows, search results and detail pages.
type Catalog interface {
	HomePage(ctx context.Context, category string, page int) (*catalog.Page, error)
	Search(ctx context.Context, query string) ([]catalog.Item, error)
	Load(ctx context.Context, detailURL string) (*catalog.Detail, error)
}

// Player resolves a data URL to playable links.
type Player interface {
	Links(ctx context.Context, dataURL string) (*playback.Result, error)
}

// Groups is the category resolution cache.
type Groups interface {
	Groups(ctx context.Context) []catalog.CategoryGroup
	Loaded() bool
	Invalidate()
}

// History lists recent publishes. Optional.
type History interface {
	Recent(ctx context.Context, n int) ([]ledger.Entry, error)
}

// Server is the HTTP API. Catalog, Player and Groups are required.
type Server struct {
	Addr       string
	Categories []string // rows returned by /api/home when no category is given
	Catalog    Catalog
	Player     Player
	Groups     Groups
	History    History

	// RequestsPerMinute caps requests per client IP; <= 0 disables the limit.
	RequestsPerMinute int
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, logRequests, countRequests)

	r.Get("/healthz", s.serveHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.RequestsPerMinute > 0 {
			r.Use(httprate.LimitByIP(s.RequestsPerMinute, time.Minute))
		}
		r.Get("/home", s.serveHome)
		r.Get("/search", s.serveSearch)
		r.Get("/load", s.serveLoad)
		r.Get("/links", s.serveLinks)
		r.Get("/groups", s.serveGroups)
		r.Post("/groups/invalidate", s.serveInvalidate)
		r.Get("/published", s.servePublished)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	logger := log.WithComponent("server")
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", s.Addr).Msg("listening")
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("shutdown")
		}
		<-serverErr
		return nil
	}
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"groups_loaded": s.Groups.Loaded(),
	})
}

type homeRow struct {
	Category string        `json:"category"`
	Page     *catalog.Page `json:"page,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// serveHome returns one row for ?category=, or every configured row when absent.
func (s *Server) serveHome(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}
	if category := r.URL.Query().Get("category"); category != "" {
		p, err := s.Catalog.HomePage(r.Context(), category, page)
		if err != nil {
			writeUpstreamError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}
	rows := make([]homeRow, 0, len(s.Categories))
	for _, category := range s.Categories {
		p, err := s.Catalog.HomePage(r.Context(), category, page)
		row := homeRow{Category: category, Page: p}
		if err != nil {
			row.Error = err.Error()
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) serveSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q")
		return
	}
	items, err := s.Catalog.Search(r.Context(), q)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) serveLoad(w http.ResponseWriter, r *http.Request) {
	u := r.URL.Query().Get("url")
	if u == "" {
		writeError(w, http.StatusBadRequest, "missing url")
		return
	}
	d, err := s.Catalog.Load(r.Context(), u)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) serveLinks(w http.ResponseWriter, r *http.Request) {
	data := r.URL.Query().Get("data")
	if data == "" {
		writeError(w, http.StatusBadRequest, "missing data")
		return
	}
	res, err := s.Player.Links(r.Context(), data)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) serveGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Groups.Groups(r.Context()))
}

func (s *Server) serveInvalidate(w http.ResponseWriter, r *http.Request) {
	s.Groups.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) servePublished(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusNotFound, "publish ledger disabled")
		return
	}
	n := 50
	if raw := r.URL.Query().Get("n"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			n = v
		}
	}
	entries, err := s.History.Recent(r.Context(), n)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeUpstreamError maps domain sentinels to 404 and everything else to 502.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, provider.ErrNotFound),
		errors.Is(err, indexer.ErrUnknownCategory),
		errors.Is(err, playback.ErrNoStream):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("upstream failure")
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
