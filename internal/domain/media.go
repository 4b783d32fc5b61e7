package domain

import (
	"errors"
	"fmt"
	"strings"
)

type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

var ErrInvalidMediaType = errors.New("invalid media type")

func ParseMediaType(raw string) (MediaType, error) {
	switch MediaType(strings.ToLower(strings.TrimSpace(raw))) {
	case MediaTypeMovie:
		return MediaTypeMovie, nil
	case MediaTypeTV:
		return MediaTypeTV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMediaType, raw)
	}
}

// SearchQuery is the provider-agnostic search input. It is built once by the
// query normalizer and never mutated afterwards.
type SearchQuery struct {
	Title         string
	Year          string
	Media         MediaType
	Season        int
	Episode       int
	QualityFilter string
}

// Formatted joins title, year and the season/episode token into the string
// handed to indexers: "Title 2019 S01E02", "Title Season 2" or "Title 2019".
func (q SearchQuery) Formatted() string {
	parts := make([]string, 0, 3)
	parts = append(parts, q.Title)
	if q.Year != "" {
		parts = append(parts, q.Year)
	}
	switch {
	case q.Season > 0 && q.Episode > 0:
		parts = append(parts, fmt.Sprintf("S%02dE%02d", q.Season, q.Episode))
	case q.Season > 0:
		parts = append(parts, fmt.Sprintf("Season %d", q.Season))
	}
	return strings.Join(parts, " ")
}

// TorrentResult is one candidate torrent as reported by an indexer. Size is
// kept as the provider-supplied human-readable text, not a parsed byte count.
type TorrentResult struct {
	Name     string `json:"name"`
	Magnet   string `json:"magnet"`
	Size     string `json:"size"`
	Seeders  int    `json:"seeders"`
	Leechers int    `json:"leechers"`
	Source   string `json:"source"`
	InfoHash string `json:"hash"`
	Quality  string `json:"quality"`
	Category string `json:"category,omitempty"`
}

// Ratio is the seed/leech ratio, computed on every read.
func (r TorrentResult) Ratio() float64 {
	leechers := r.Leechers
	if leechers < 1 {
		leechers = 1
	}
	return float64(r.Seeders) / float64(leechers)
}

// HealthScore maps seeder count to a 0-100 ranking heuristic:
// 0 seeders scores 0, 50 or more scores 100, anything between scores seeders*2.
func (r TorrentResult) HealthScore() int {
	if r.Seeders == 0 {
		return 0
	}
	if r.Seeders >= 50 {
		return 100
	}
	score := r.Seeders * 2
	if score > 100 {
		score = 100
	}
	return score
}

// RankedResult is the record exposed to callers: the raw result plus the
// derived health score and the ratio rounded to two decimals.
type RankedResult struct {
	TorrentResult
	HealthScore int     `json:"health_score"`
	Ratio       float64 `json:"ratio"`
}

type ProviderStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

type SearchResponse struct {
	Query      string           `json:"query"`
	Items      []RankedResult   `json:"items"`
	Providers  []ProviderStatus `json:"providers"`
	TotalItems int              `json:"totalItems"`
	ElapsedMS  int64            `json:"elapsedMs"`
}

// TrackerStatus is the per-provider entry of the diagnostics endpoint.
type TrackerStatus struct {
	Available bool   `json:"available"`
	Name      string `json:"name"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ProviderDiagnostics struct {
	Name                string `json:"name"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
	LastError           string `json:"lastError,omitempty"`
	LastSuccessAt       string `json:"lastSuccessAt,omitempty"`
	LastFailureAt       string `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64  `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool   `json:"lastTimeout,omitempty"`
	LastQuery           string `json:"lastQuery,omitempty"`
	TotalRequests       int64  `json:"totalRequests,omitempty"`
	TotalFailures       int64  `json:"totalFailures,omitempty"`
	TimeoutCount        int64  `json:"timeoutCount,omitempty"`
}

// PlaybackResult is the single outcome of a playback trigger: either a stream
// URL with a message, or an error string. Exactly one of the two shapes is
// ever populated.
type PlaybackResult struct {
	Success   bool   `json:"success"`
	StreamURL string `json:"stream_url,omitempty"`
	Hash      string `json:"hash,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

func PlaybackSuccess(streamURL, hash, message string) PlaybackResult {
	return PlaybackResult{Success: true, StreamURL: streamURL, Hash: hash, Message: message}
}

func PlaybackFailure(reason string) PlaybackResult {
	return PlaybackResult{Success: false, Error: reason}
}
