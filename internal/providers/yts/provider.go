package yts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mediastream/discovery/internal/domain"
	"mediastream/discovery/internal/magnet"
)

const (
	defaultEndpoint = "https://yts.mx/api/v2/list_movies.json"
	defaultLimit    = 20
	maxMovies       = 10
)

type Config struct {
	Endpoint   string
	UserAgent  string
	MaxResults int
	Client     *http.Client
}

// Provider queries the YTS movie API. It only serves movie lookups;
// TV queries return no results without issuing a request.
type Provider struct {
	endpoint   string
	userAgent  string
	maxResults int
	client     *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Provider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 || maxResults > defaultLimit {
		maxResults = defaultLimit
	}
	return &Provider{
		endpoint:   endpoint,
		userAgent:  cfg.UserAgent,
		maxResults: maxResults,
		client:     client,
		logger:     logger.With("provider", "yts"),
	}
}

func (p *Provider) Name() string { return "YTS" }

func (p *Provider) BaseURL() string { return p.endpoint }

func (p *Provider) Supports(media domain.MediaType) bool {
	return media == domain.MediaTypeMovie
}

type apiTorrent struct {
	Hash    string `json:"hash"`
	Quality string `json:"quality"`
	Size    string `json:"size"`
	Seeds   int    `json:"seeds"`
	Peers   int    `json:"peers"`
}

type apiMovie struct {
	Title    string       `json:"title"`
	Year     int          `json:"year"`
	Torrents []apiTorrent `json:"torrents"`
}

type apiResponse struct {
	Status string `json:"status"`
	Data   struct {
		Movies []apiMovie `json:"movies"`
	} `json:"data"`
}

func (p *Provider) Search(ctx context.Context, query domain.SearchQuery) ([]domain.TorrentResult, error) {
	if !p.Supports(query.Media) {
		return nil, nil
	}

	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("yts: bad endpoint: %w", err)
	}
	params := url.Values{}
	params.Set("query_term", query.Formatted())
	params.Set("limit", strconv.Itoa(p.maxResults))
	params.Set("sort_by", "seeds")
	params.Set("order_by", "desc")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("yts: unexpected status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("yts: decode response: %w", err)
	}
	if parsed.Status != "ok" || len(parsed.Data.Movies) == 0 {
		return nil, nil
	}

	movies := parsed.Data.Movies
	if len(movies) > maxMovies {
		movies = movies[:maxMovies]
	}

	var results []domain.TorrentResult
	for _, movie := range movies {
		for _, t := range movie.Torrents {
			if t.Hash == "" {
				continue
			}
			name := fmt.Sprintf("%s (%d) %s [YTS]", movie.Title, movie.Year, t.Quality)
			results = append(results, domain.TorrentResult{
				Name:     name,
				Magnet:   magnet.Build(t.Hash, name),
				Size:     t.Size,
				Seeders:  t.Seeds,
				Leechers: t.Peers,
				Source:   "YTS",
				InfoHash: t.Hash,
				Quality:  t.Quality,
				Category: "Movies",
			})
		}
	}
	p.logger.Debug("search complete", "query", query.Formatted(), "results", len(results))
	return results, nil
}

// Available probes the API with a minimal listing request.
func (p *Provider) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?limit=1", nil)
	if err != nil {
		return false
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}
