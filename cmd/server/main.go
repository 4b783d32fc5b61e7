package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "mediastream/discovery/internal/api/http"
	"mediastream/discovery/internal/app"
	"mediastream/discovery/internal/metrics"
	"mediastream/discovery/internal/playback"
	"mediastream/discovery/internal/providers/tmdb"
	"mediastream/discovery/internal/providers/tpb"
	"mediastream/discovery/internal/providers/yts"
	"mediastream/discovery/internal/search"
	"mediastream/discovery/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "media-discovery",
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "media-discovery"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("torrentTimeout", cfg.TorrentTimeout),
		slog.Int("maxResults", cfg.MaxResults),
		slog.String("torrserverURL", cfg.TorrServerURL),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Bool("hasTMDBKey", strings.TrimSpace(cfg.TMDBAPIKey) != ""),
	)

	ytsClient := &http.Client{Timeout: cfg.TorrentTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	tpbClient := &http.Client{Timeout: cfg.TorrentTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	daemonClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	searchService := search.NewService([]search.Provider{
		yts.New(yts.Config{
			Endpoint:   cfg.YTSEndpoint,
			UserAgent:  cfg.UserAgent,
			MaxResults: cfg.MaxResults,
			Client:     ytsClient,
		}, logger),
		tpb.New(tpb.Config{
			Mirrors:    cfg.TPBMirrors,
			UserAgent:  cfg.UserAgent,
			MaxResults: cfg.MaxResults,
			Client:     tpbClient,
		}, logger),
	}, search.Config{MaxResults: cfg.MaxResults}, logger)

	playbackClient := playback.NewClient(playback.Config{
		BaseURL:    cfg.TorrServerURL,
		StreamPath: cfg.TorrServerStream,
		Client:     daemonClient,
	}, logger)

	serverOpts := []apihttp.ServerOption{apihttp.WithLogger(logger)}
	tmdbClient := buildTMDBClient(cfg, logger)
	if tmdbClient != nil && tmdbClient.Enabled() {
		serverOpts = append(serverOpts, apihttp.WithCatalog(tmdbClient))
	}

	handler := apihttp.NewServer(searchService, playbackClient, serverOpts...).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Registration against a slow daemon can take up to 30s.
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("media discovery service started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("media discovery service stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	options := &slog.HandlerOptions{Level: parseLogLevel(levelRaw)}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildTMDBClient(cfg app.Config, logger *slog.Logger) *tmdb.Client {
	apiKey := strings.TrimSpace(cfg.TMDBAPIKey)
	if apiKey == "" {
		logger.Info("tmdb api key not configured, suggest endpoint disabled")
		return nil
	}

	var redisClient *redis.Client
	if redisURL := strings.TrimSpace(cfg.RedisURL); redisURL != "" {
		if opts, err := redis.ParseURL(redisURL); err == nil {
			redisClient = redis.NewClient(opts)
		} else {
			logger.Warn("invalid redis url, tmdb cache disabled", slog.String("error", err.Error()))
		}
	}

	client := tmdb.NewClient(tmdb.Config{
		APIKey:   apiKey,
		BaseURL:  cfg.TMDBBaseURL,
		Language: cfg.Language,
		Client:   &http.Client{Timeout: 10 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Redis:    redisClient,
		CacheTTL: cfg.TMDBCacheTTL,
	})
	logger.Info("tmdb client initialized", slog.Bool("enabled", client.Enabled()))
	return client
}
