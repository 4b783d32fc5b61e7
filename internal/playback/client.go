package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"mediastream/discovery/internal/domain"
	"mediastream/discovery/internal/magnet"
	"mediastream/discovery/internal/metrics"
)

const (
	listTimeout  = 10 * time.Second
	addTimeout   = 30 * time.Second
	probeTimeout = 5 * time.Second
)

// Client drives the streaming daemon: existence check, registration and
// the echo liveness probe. Every Trigger call produces exactly one
// outcome value; nothing panics across this boundary.
type Client struct {
	base       string
	streamPath string
	http       *http.Client
	logger     *slog.Logger
}

type Config struct {
	BaseURL    string
	StreamPath string
	Client     *http.Client
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	streamPath := cfg.StreamPath
	if streamPath == "" {
		streamPath = "/stream"
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		base:       base,
		streamPath: streamPath,
		http:       httpClient,
		logger:     logger.With("component", "playback"),
	}
}

func (c *Client) BaseURL() string { return c.base }

// StreamURL builds the daemon's playback URL for an info-hash.
func (c *Client) StreamURL(hash string) string {
	return fmt.Sprintf("%s%s?link=%s&index=1&play", c.base, c.streamPath, hash)
}

// Trigger validates the magnet, short-circuits if the daemon already has
// the torrent, otherwise registers it. Validation failures make no
// network call at all.
func (c *Client) Trigger(ctx context.Context, magnetLink string) domain.PlaybackResult {
	result := c.trigger(ctx, magnetLink)
	outcome := "failure"
	if result.Success {
		outcome = "success"
	}
	metrics.PlaybackTriggersTotal.WithLabelValues(outcome).Inc()
	return result
}

func (c *Client) trigger(ctx context.Context, magnetLink string) domain.PlaybackResult {
	if !strings.HasPrefix(magnetLink, magnet.Scheme) {
		return domain.PlaybackFailure("Invalid magnet link")
	}
	hash, ok := magnet.ExtractHash(magnetLink)
	if !ok {
		return domain.PlaybackFailure("Cannot extract hash from magnet link")
	}
	if len(hash) != 40 {
		c.logger.Warn("info hash left in degraded form, daemon match may fail", "hash", hash)
	}

	if existing, found := c.findExisting(ctx, hash); found {
		return existing
	}
	return c.register(ctx, magnetLink, hash)
}

// findExisting checks the daemon's torrent list for the hash. Every
// failure here is degraded to "not found"; the registration step decides
// the outcome.
func (c *Client) findExisting(ctx context.Context, hash string) (domain.PlaybackResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/torrents", nil)
	if err != nil {
		return domain.PlaybackResult{}, false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("existence check failed", "error", err)
		return domain.PlaybackResult{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return domain.PlaybackResult{}, false
	}

	var torrents []struct {
		Hash string `json:"hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&torrents); err != nil {
		c.logger.Warn("existence check returned unparsable body", "error", err)
		return domain.PlaybackResult{}, false
	}

	for _, t := range torrents {
		if strings.EqualFold(t.Hash, hash) {
			return domain.PlaybackSuccess(c.StreamURL(hash), hash, "Torrent already exists, stream is ready"), true
		}
	}
	return domain.PlaybackResult{}, false
}

func (c *Client) register(ctx context.Context, magnetLink, hash string) domain.PlaybackResult {
	ctx, cancel := context.WithTimeout(ctx, addTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"action":     "add",
		"link":       magnetLink,
		"save_to_db": true,
	})
	if err != nil {
		return domain.PlaybackFailure(fmt.Sprintf("Unexpected error: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/torrents", bytes.NewReader(payload))
	if err != nil {
		return domain.PlaybackFailure(fmt.Sprintf("Unexpected error: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return domain.PlaybackFailure(fmt.Sprintf("TorrServer error (%d): %s", resp.StatusCode, string(body)))
	}
	return domain.PlaybackSuccess(c.StreamURL(hash), hash, "Torrent successfully added")
}

func (c *Client) classifyTransportError(err error) domain.PlaybackResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.PlaybackFailure("TorrServer timeout - try again")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.PlaybackFailure("TorrServer timeout - try again")
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.PlaybackFailure(fmt.Sprintf("Cannot connect to TorrServer (%s)", c.base))
	}
	if strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return domain.PlaybackFailure(fmt.Sprintf("Cannot connect to TorrServer (%s)", c.base))
	}
	return domain.PlaybackFailure(fmt.Sprintf("Unexpected error: %v", err))
}

// Online probes the daemon's echo endpoint.
func (c *Client) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/echo", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}
