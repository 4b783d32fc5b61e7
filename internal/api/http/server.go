package apihttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mediastream/discovery/internal/domain"
	"mediastream/discovery/internal/providers/tmdb"
	"mediastream/discovery/internal/search"
)

const maxQueryLength = 500

type SearchService interface {
	Search(ctx context.Context, query domain.SearchQuery) domain.SearchResponse
	TrackerStatus(ctx context.Context) map[string]domain.TrackerStatus
	ProviderDiagnostics() []domain.ProviderDiagnostics
}

type PlaybackService interface {
	Trigger(ctx context.Context, magnet string) domain.PlaybackResult
	Online(ctx context.Context) bool
	BaseURL() string
}

type CatalogService interface {
	SearchMulti(ctx context.Context, query string) ([]tmdb.SearchResult, error)
	EnglishTitle(ctx context.Context, media domain.MediaType, id int) (string, error)
	Enabled() bool
}

type Server struct {
	search   SearchService
	playback PlaybackService
	catalog  CatalogService
	logger   *slog.Logger
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func WithCatalog(catalog CatalogService) ServerOption {
	return func(s *Server) { s.catalog = catalog }
}

func NewServer(searchService SearchService, playbackService PlaybackService, options ...ServerOption) *Server {
	server := &Server{
		search:   searchService,
		playback: playbackService,
		logger:   slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/torrents", s.handleSearchTorrents)
	mux.HandleFunc("/api/play-torrent", s.handlePlayTorrent)
	mux.HandleFunc("/api/torrserver-status", s.handleTorrServerStatus)
	mux.HandleFunc("/api/tracker-status", s.handleTrackerStatus)
	mux.HandleFunc("/api/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("/api/suggest", s.handleSuggest)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "discovery",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

type searchRequest struct {
	Title        string `json:"title"`
	EnglishTitle string `json:"english_title"`
	TMDBID       int    `json:"tmdb_id"`
	Year         string `json:"year"`
	MediaType    string `json:"media_type"`
	Season       int    `json:"season"`
	Episode      int    `json:"episode"`
	Quality      string `json:"quality"`
}

// handleSearchTorrents mirrors the UI contract: a missing title yields
// an empty array with status 200 so the page always has something to
// render; only a malformed media type is a hard client error.
func (s *Server) handleSearchTorrents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, []domain.RankedResult{})
		return
	}

	title := strings.TrimSpace(req.EnglishTitle)
	if title == "" {
		title = strings.TrimSpace(req.Title)
	}
	if title == "" {
		writeJSON(w, http.StatusOK, []domain.RankedResult{})
		return
	}
	if len(title) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "title too long (max 500 characters)")
		return
	}

	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = string(domain.MediaTypeMovie)
	}

	query, err := search.NewQuery(title, req.Year, mediaType, req.Season, req.Episode, req.Quality)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	// Localized titles rarely match indexer release names. When the UI
	// sends a catalog id without an English title, resolve one first.
	if req.EnglishTitle == "" && req.TMDBID > 0 && s.catalog != nil && s.catalog.Enabled() {
		if english, lookupErr := s.catalog.EnglishTitle(r.Context(), query.Media, req.TMDBID); lookupErr == nil && english != "" {
			if rebuilt, rebuildErr := search.NewQuery(english, req.Year, mediaType, req.Season, req.Episode, req.Quality); rebuildErr == nil {
				query = rebuilt
			}
		} else if lookupErr != nil {
			s.logger.Warn("english title lookup failed", slog.Int("tmdbID", req.TMDBID), slog.String("error", lookupErr.Error()))
		}
	}

	response := s.search.Search(r.Context(), query)
	failed := 0
	for _, status := range response.Providers {
		if !status.OK {
			failed++
		}
	}
	s.logger.Info("torrent search completed",
		slog.String("query", truncate(response.Query, 80)),
		slog.Int("totalItems", response.TotalItems),
		slog.Int64("elapsedMs", response.ElapsedMS),
		slog.Int("failedProviders", failed),
	)

	writeJSON(w, http.StatusOK, response.Items)
}

type playRequest struct {
	Magnet string `json:"magnet"`
}

func (s *Server) handlePlayTorrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, domain.PlaybackFailure("Missing magnet link"))
		return
	}
	magnet := strings.TrimSpace(req.Magnet)
	if magnet == "" {
		writeJSON(w, http.StatusOK, domain.PlaybackFailure("Missing magnet link"))
		return
	}

	result := s.playback.Trigger(r.Context(), magnet)
	if !result.Success {
		s.logger.Warn("playback trigger failed", slog.String("error", result.Error))
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTorrServerStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	status := "offline"
	if s.playback.Online(r.Context()) {
		status = "online"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": status,
		"url":    s.playback.BaseURL(),
	})
}

func (s *Server) handleTrackerStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.search.TrackerStatus(r.Context()))
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": s.search.ProviderDiagnostics(),
	})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil || !s.catalog.Enabled() {
		writeJSON(w, http.StatusOK, map[string]any{"items": []suggestItem{}})
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}

	results, err := s.catalog.SearchMulti(r.Context(), query)
	if err != nil {
		s.logger.Warn("suggest lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "upstream_error", "catalog lookup failed")
		return
	}

	items := make([]suggestItem, 0, len(results))
	for _, result := range results {
		items = append(items, suggestItem{
			ID:        result.ID,
			Title:     result.DisplayTitle(),
			Year:      result.Year(),
			MediaType: result.MediaType,
			Poster:    result.PosterURL(),
			Rating:    result.VoteAverage,
			Overview:  result.Overview,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type suggestItem struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	Year      int     `json:"year,omitempty"`
	MediaType string  `json:"media_type"`
	Poster    string  `json:"poster,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
	Overview  string  `json:"overview,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
