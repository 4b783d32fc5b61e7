package tpb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mediastream/discovery/internal/domain"
	"mediastream/discovery/internal/magnet"
	"mediastream/discovery/internal/providers/common"
)

var defaultMirrors = []string{
	"https://thepiratebay.org",
	"https://tpb.party",
	"https://thepiratebay10.org",
	"https://piratebay.live",
	"https://thepiratebay.zone",
}

const (
	categoryTV     = "200"
	categoryMovies = "201"
)

var (
	tablePattern  = regexp.MustCompile(`(?s)<table[^>]*id="searchResult"[^>]*>(.*?)</table>`)
	rowPattern    = regexp.MustCompile(`(?s)<tr[^>]*>(.*?)</tr>`)
	titlePattern  = regexp.MustCompile(`<a[^>]*class="detLink"[^>]*title="[^"]*Details for ([^"]*)"[^>]*>`)
	magnetPattern = regexp.MustCompile(`<a[^>]*href="(magnet:\?xt=urn:btih:[^"]*)"[^>]*>`)
	peersPattern  = regexp.MustCompile(`<td[^>]*align="right">(\d+)</td>`)
	sizePattern   = regexp.MustCompile(`Size ([^,]+),`)
)

type Config struct {
	Mirrors    []string
	UserAgent  string
	MaxResults int
	Client     *http.Client
}

// Provider scrapes Pirate Bay mirrors. Mirrors are tried in order until
// one yields results; attempts are paced to avoid hammering.
type Provider struct {
	mirrors    []string
	userAgent  string
	maxResults int
	client     *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Provider {
	mirrors := cfg.Mirrors
	if len(mirrors) == 0 {
		mirrors = defaultMirrors
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	return &Provider{
		mirrors:    mirrors,
		userAgent:  cfg.UserAgent,
		maxResults: maxResults,
		client:     client,
		limiter:    rate.NewLimiter(rate.Every(300*time.Millisecond), 1),
		logger:     logger.With("provider", "tpb"),
	}
}

func (p *Provider) Name() string { return "TPB" }

func (p *Provider) BaseURL() string { return p.mirrors[0] }

func (p *Provider) Supports(domain.MediaType) bool { return true }

func (p *Provider) Search(ctx context.Context, query domain.SearchQuery) ([]domain.TorrentResult, error) {
	category := categoryMovies
	if query.Media == domain.MediaTypeTV {
		category = categoryTV
	}

	var lastErr error
	for _, mirror := range p.mirrors {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		results, err := p.searchMirror(ctx, mirror, query.Formatted(), category)
		if err != nil {
			p.logger.Warn("mirror failed", "mirror", mirror, "error", err)
			lastErr = err
			continue
		}
		if len(results) > 0 {
			p.logger.Debug("mirror ok", "mirror", mirror, "results", len(results))
			return results, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("tpb: all mirrors failed: %w", lastErr)
	}
	return nil, nil
}

func (p *Provider) searchMirror(ctx context.Context, mirror, query, category string) ([]domain.TorrentResult, error) {
	// The query lives in a path segment, so spaces must be %20, not +.
	searchURL := fmt.Sprintf("%s/search/%s/1/99/%s", mirror, url.PathEscape(query), category)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return p.parsePage(string(body)), nil
}

func (p *Provider) parsePage(page string) []domain.TorrentResult {
	table := tablePattern.FindStringSubmatch(page)
	if table == nil {
		return nil
	}

	rows := rowPattern.FindAllStringSubmatch(table[1], -1)
	if len(rows) > p.maxResults {
		rows = rows[:p.maxResults]
	}

	var results []domain.TorrentResult
	for _, row := range rows {
		if r, ok := p.parseRow(row[1]); ok {
			results = append(results, r)
		}
	}
	return results
}

// parseRow extracts a single result from a table row fragment. Rows
// missing a title or magnet link are skipped without aborting the page.
func (p *Provider) parseRow(row string) (domain.TorrentResult, bool) {
	titleMatch := titlePattern.FindStringSubmatch(row)
	if titleMatch == nil {
		return domain.TorrentResult{}, false
	}
	title := strings.TrimSpace(common.CleanHTMLText(titleMatch[1]))

	magnetMatch := magnetPattern.FindStringSubmatch(row)
	if magnetMatch == nil {
		return domain.TorrentResult{}, false
	}
	link := magnetMatch[1]

	var seeders, leechers int
	peers := peersPattern.FindAllStringSubmatch(row, 2)
	if len(peers) > 0 {
		seeders, _ = strconv.Atoi(peers[0][1])
	}
	if len(peers) > 1 {
		leechers, _ = strconv.Atoi(peers[1][1])
	}

	size := "Unknown"
	if m := sizePattern.FindStringSubmatch(row); m != nil {
		size = strings.TrimSpace(m[1])
	}

	hash, ok := magnet.ExtractHash(link)
	if !ok {
		p.logger.Warn("magnet link carries no parsable info hash", "title", title)
	}

	return domain.TorrentResult{
		Name:     title + " [TPB]",
		Magnet:   link,
		Size:     size,
		Seeders:  seeders,
		Leechers: leechers,
		Source:   "TPB",
		InfoHash: hash,
		Quality:  common.ExtractQuality(title),
		Category: "Mixed",
	}, true
}

// Available reports whether any mirror answers a root GET.
func (p *Provider) Available(ctx context.Context) bool {
	for _, mirror := range p.mirrors {
		if p.probe(ctx, mirror) {
			return true
		}
	}
	return false
}

func (p *Provider) probe(ctx context.Context, mirror string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mirror+"/", nil)
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
