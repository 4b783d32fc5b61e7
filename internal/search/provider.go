package search

import (
	"context"
	"errors"

	"mediastream/discovery/internal/domain"
)

var (
	ErrEmptyTitle      = errors.New("title is required")
	ErrInvalidSeason   = errors.New("season must be a positive number")
	ErrInvalidEpisode  = errors.New("episode must be a positive number")
	ErrEpisodeNoSeason = errors.New("episode requires a season")
)

// Provider is the capability contract every indexer implements. Search
// failures are the provider's own typed errors; the aggregator swallows
// them and they never reach its caller.
type Provider interface {
	Name() string
	BaseURL() string
	Supports(media domain.MediaType) bool
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.TorrentResult, error)
	Available(ctx context.Context) bool
}
