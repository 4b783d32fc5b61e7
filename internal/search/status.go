package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"mediastream/discovery/internal/domain"
)

const (
	probeTimeout     = 5 * time.Second
	maxParallelProbe = 4
)

// TrackerStatus probes every registered provider's liveness check in
// parallel, bounded by a semaphore, and returns a map keyed by
// upper-cased provider name.
func (s *Service) TrackerStatus(ctx context.Context) map[string]domain.TrackerStatus {
	providers := s.Providers()
	statuses := make(map[string]domain.TrackerStatus, len(providers))

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(maxParallelProbe)

	for _, provider := range providers {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			statuses[strings.ToUpper(provider.Name())] = domain.TrackerStatus{
				Name:  provider.Name(),
				URL:   provider.BaseURL(),
				Error: err.Error(),
			}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			defer sem.Release(1)

			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			available := p.Available(probeCtx)
			mu.Lock()
			statuses[strings.ToUpper(p.Name())] = domain.TrackerStatus{
				Available: available,
				Name:      p.Name(),
				URL:       p.BaseURL(),
			}
			mu.Unlock()
		}(provider)
	}

	wg.Wait()
	return statuses
}
