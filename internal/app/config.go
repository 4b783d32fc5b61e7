package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	UserAgent        string
	Language         string
	YTSEndpoint      string
	TPBMirrors       []string
	TorrentTimeout   time.Duration
	MaxResults       int
	TorrServerURL    string
	TorrServerStream string
	RedisURL         string
	TMDBAPIKey       string
	TMDBBaseURL      string
	TMDBCacheTTL     time.Duration
	OTLPEndpoint     string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:        getEnv("SEARCH_USER_AGENT", "media-discovery/1.0"),
		Language:         getEnv("LANGUAGE", "en-US"),
		YTSEndpoint:      getEnv("YTS_ENDPOINT", "https://yts.mx/api/v2/list_movies.json"),
		TPBMirrors:       splitCSV(getEnv("TPB_MIRRORS", "")),
		TorrentTimeout:   time.Duration(getEnvIntClamped("TORRENT_TIMEOUT", 5, 1, 30)) * time.Second,
		MaxResults:       getEnvIntClamped("MAX_TORRENT_RESULTS", 20, 1, 100),
		TorrServerURL:    strings.TrimRight(getEnv("TORRSERVER_URL", "http://127.0.0.1:8090"), "/"),
		TorrServerStream: getEnv("TORRSERVER_STREAM_PATH", "/stream"),
		RedisURL:         getEnv("REDIS_URL", ""),
		TMDBAPIKey:       strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:      getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBCacheTTL:     time.Duration(getEnvInt("CACHE_TIMEOUT", 300)) * time.Second,
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// getEnvIntClamped folds out-of-range values back into [min, max]
// instead of rejecting them.
func getEnvIntClamped(key string, fallback, min, max int) int {
	value := getEnvInt(key, fallback)
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, strings.TrimRight(trimmed, "/"))
		}
	}
	return values
}
