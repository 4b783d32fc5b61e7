package search

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"mediastream/discovery/internal/domain"
	"mediastream/discovery/internal/metrics"
)

const defaultMaxResults = 20

type plan struct {
	order []string
	// exclusive names the provider whose non-empty results stop the
	// loop: later providers in the order are not attempted.
	exclusive string
}

type Config struct {
	MaxResults int
	Retry      RetryConfig
}

// Service owns the provider registry and the per-media-type try order.
// Both are built once at construction and never mutated.
type Service struct {
	providers  map[string]Provider
	order      []string
	plans      map[domain.MediaType]plan
	maxResults int
	retry      RetryConfig
	logger     *slog.Logger

	healthMu sync.Mutex
	health   map[string]*providerHealth
}

func NewService(providers []Provider, cfg Config, logger *slog.Logger) *Service {
	registry := make(map[string]Provider, len(providers))
	order := make([]string, 0, len(providers))
	for _, p := range providers {
		key := strings.ToLower(strings.TrimSpace(p.Name()))
		if key == "" {
			continue
		}
		if _, exists := registry[key]; !exists {
			order = append(order, key)
		}
		registry[key] = p
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryConfig()
	}

	return &Service{
		providers: registry,
		order:     order,
		plans: map[domain.MediaType]plan{
			domain.MediaTypeMovie: {order: []string{"yts", "tpb"}, exclusive: "yts"},
			domain.MediaTypeTV:    {order: []string{"tpb"}},
		},
		maxResults: maxResults,
		retry:      retry,
		logger:     logger,
		health:     make(map[string]*providerHealth),
	}
}

// Search fans the query out to the providers planned for its media type,
// sequentially and in fixed order. Provider failures are swallowed into
// the per-provider status list; the response always carries a
// renderable, possibly empty, item list.
func (s *Service) Search(ctx context.Context, query domain.SearchQuery) domain.SearchResponse {
	start := time.Now()

	var all []domain.TorrentResult
	var statuses []domain.ProviderStatus

	p := s.plans[query.Media]
	for _, id := range p.order {
		provider, ok := s.providers[id]
		if !ok {
			continue
		}
		if !provider.Supports(query.Media) {
			continue
		}

		results, err := s.callProvider(ctx, provider, query)
		status := domain.ProviderStatus{Name: provider.Name(), OK: err == nil, Count: len(results)}
		if err != nil {
			status.Error = err.Error()
			s.logger.Warn("provider failed", "provider", provider.Name(), "error", err)
		}
		statuses = append(statuses, status)
		all = append(all, results...)

		if id == p.exclusive && len(results) > 0 {
			break
		}
	}

	if query.QualityFilter != "" {
		all = filterQuality(all, query.QualityFilter)
	}

	items := rank(all, s.maxResults)
	elapsed := time.Since(start)
	metrics.SearchDuration.WithLabelValues(string(query.Media)).Observe(elapsed.Seconds())

	return domain.SearchResponse{
		Query:      query.Formatted(),
		Items:      items,
		Providers:  statuses,
		TotalItems: len(items),
		ElapsedMS:  elapsed.Milliseconds(),
	}
}

func (s *Service) callProvider(ctx context.Context, provider Provider, query domain.SearchQuery) ([]domain.TorrentResult, error) {
	var results []domain.TorrentResult
	start := time.Now()
	err := RetryWithBackoff(ctx, s.retry, func() error {
		r, searchErr := provider.Search(ctx, query)
		if searchErr != nil {
			return searchErr
		}
		results = r
		return nil
	})
	s.recordProviderResult(provider.Name(), query.Formatted(), err, time.Since(start), time.Now())
	if err != nil {
		return nil, err
	}
	return results, nil
}

func filterQuality(results []domain.TorrentResult, quality string) []domain.TorrentResult {
	filtered := results[:0]
	for _, r := range results {
		if strings.EqualFold(r.Quality, quality) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// rank orders results descending by (health score, seeders) with a
// stable sort, truncates to max and attaches the derived fields.
func rank(results []domain.TorrentResult, max int) []domain.RankedResult {
	sort.SliceStable(results, func(i, j int) bool {
		hi, hj := results[i].HealthScore(), results[j].HealthScore()
		if hi != hj {
			return hi > hj
		}
		return results[i].Seeders > results[j].Seeders
	})
	if len(results) > max {
		results = results[:max]
	}

	ranked := make([]domain.RankedResult, 0, len(results))
	for _, r := range results {
		ranked = append(ranked, domain.RankedResult{
			TorrentResult: r,
			HealthScore:   r.HealthScore(),
			Ratio:         math.Round(r.Ratio()*100) / 100,
		})
	}
	return ranked
}

// Providers returns the registered providers in registration order.
func (s *Service) Providers() []Provider {
	providers := make([]Provider, 0, len(s.order))
	for _, id := range s.order {
		providers = append(providers, s.providers[id])
	}
	return providers
}
