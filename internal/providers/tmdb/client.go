package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mediastream/discovery/internal/domain"
	"mediastream/discovery/internal/metrics"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	posterBaseURL   = "https://image.tmdb.org/t/p/w300"
	defaultLanguage = "en-US"
	redisCacheKey   = "discovery:tmdb:"
)

// Client talks to the TMDB v3 API. Catalog responses are cached in Redis
// when a client is configured; with no API key every call is a no-op.
type Client struct {
	apiKey   string
	baseURL  string
	language string
	http     *http.Client
	redis    *redis.Client
	cacheTTL time.Duration
}

type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Client   *http.Client
	Redis    *redis.Client
	CacheTTL time.Duration
}

type SearchResult struct {
	ID           int     `json:"id"`
	Title        string  `json:"title,omitempty"`
	Name         string  `json:"name,omitempty"`
	Overview     string  `json:"overview,omitempty"`
	PosterPath   string  `json:"poster_path,omitempty"`
	VoteAverage  float64 `json:"vote_average,omitempty"`
	ReleaseDate  string  `json:"release_date,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
	MediaType    string  `json:"media_type,omitempty"`
}

func (r SearchResult) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

func (r SearchResult) Year() int {
	date := r.ReleaseDate
	if date == "" {
		date = r.FirstAirDate
	}
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

func (r SearchResult) PosterURL() string {
	if r.PosterPath == "" {
		return ""
	}
	return posterBaseURL + r.PosterPath
}

type multiSearchResponse struct {
	Results []SearchResult `json:"results"`
}

type detailResponse struct {
	Title         string `json:"title,omitempty"`
	Name          string `json:"name,omitempty"`
	OriginalTitle string `json:"original_title,omitempty"`
	OriginalName  string `json:"original_name,omitempty"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = defaultLanguage
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		http:     httpClient,
		redis:    cfg.Redis,
		cacheTTL: cacheTTL,
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// SearchMulti runs a multi-search filtered to movie and TV entries.
func (c *Client) SearchMulti(ctx context.Context, query string) ([]SearchResult, error) {
	if !c.Enabled() {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("multi:%s:%s", strings.ToLower(strings.TrimSpace(query)), c.language)
	if c.redis != nil {
		data, err := c.redis.Get(ctx, redisCacheKey+cacheKey).Bytes()
		if err == nil {
			var results []SearchResult
			if json.Unmarshal(data, &results) == nil {
				metrics.CatalogCacheHitsTotal.Inc()
				return results, nil
			}
		}
		metrics.CatalogCacheMissesTotal.Inc()
	}

	body, err := c.get(ctx, "/search/multi", url.Values{
		"query":    {strings.TrimSpace(query)},
		"language": {c.language},
	})
	if err != nil {
		return nil, err
	}

	var response multiSearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(response.Results))
	for _, r := range response.Results {
		if r.MediaType == "movie" || r.MediaType == "tv" {
			results = append(results, r)
		}
	}

	if c.redis != nil {
		if data, err := json.Marshal(results); err == nil {
			_ = c.redis.Set(ctx, redisCacheKey+cacheKey, data, c.cacheTTL).Err()
		}
	}
	return results, nil
}

// EnglishTitle fetches the en-US title for an entry. Localized catalog
// titles rarely match indexer release names, so searches go out with the
// English one.
func (c *Client) EnglishTitle(ctx context.Context, media domain.MediaType, id int) (string, error) {
	if !c.Enabled() {
		return "", nil
	}

	path := fmt.Sprintf("/movie/%d", id)
	if media == domain.MediaTypeTV {
		path = fmt.Sprintf("/tv/%d", id)
	}

	cacheKey := fmt.Sprintf("entitle:%s:%d", media, id)
	if c.redis != nil {
		if title, err := c.redis.Get(ctx, redisCacheKey+cacheKey).Result(); err == nil {
			metrics.CatalogCacheHitsTotal.Inc()
			return title, nil
		}
		metrics.CatalogCacheMissesTotal.Inc()
	}

	body, err := c.get(ctx, path, url.Values{"language": {"en-US"}})
	if err != nil {
		return "", err
	}

	var detail detailResponse
	if err := json.Unmarshal(body, &detail); err != nil {
		return "", err
	}

	title := detail.OriginalTitle
	if title == "" {
		title = detail.Title
	}
	if title == "" {
		title = detail.OriginalName
	}
	if title == "" {
		title = detail.Name
	}

	if c.redis != nil && title != "" {
		_ = c.redis.Set(ctx, redisCacheKey+cacheKey, title, c.cacheTTL).Err()
	}
	return title, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tmdb HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}
