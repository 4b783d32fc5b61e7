package apihttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mediastream/discovery/internal/domain"
	"mediastream/discovery/internal/providers/tmdb"
)

type fakeSearch struct {
	response  domain.SearchResponse
	statuses  map[string]domain.TrackerStatus
	diags     []domain.ProviderDiagnostics
	lastQuery domain.SearchQuery
	calls     int
}

func (f *fakeSearch) Search(ctx context.Context, query domain.SearchQuery) domain.SearchResponse {
	f.calls++
	f.lastQuery = query
	return f.response
}

func (f *fakeSearch) TrackerStatus(ctx context.Context) map[string]domain.TrackerStatus {
	return f.statuses
}

func (f *fakeSearch) ProviderDiagnostics() []domain.ProviderDiagnostics { return f.diags }

type fakePlayback struct {
	result domain.PlaybackResult
	online bool
	calls  int
}

func (f *fakePlayback) Trigger(ctx context.Context, magnet string) domain.PlaybackResult {
	f.calls++
	return f.result
}

func (f *fakePlayback) Online(ctx context.Context) bool { return f.online }
func (f *fakePlayback) BaseURL() string                 { return "http://127.0.0.1:8090" }

type fakeCatalog struct {
	results      []tmdb.SearchResult
	err          error
	enabled      bool
	englishTitle string
}

func (f *fakeCatalog) SearchMulti(ctx context.Context, query string) ([]tmdb.SearchResult, error) {
	return f.results, f.err
}

func (f *fakeCatalog) EnglishTitle(ctx context.Context, media domain.MediaType, id int) (string, error) {
	return f.englishTitle, f.err
}

func (f *fakeCatalog) Enabled() bool { return f.enabled }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func newTestServer(searchSvc *fakeSearch, playbackSvc *fakePlayback, opts ...ServerOption) http.Handler {
	opts = append(opts, WithLogger(testLogger()))
	return NewServer(searchSvc, playbackSvc, opts...).Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSearchTorrentsReturnsItems(t *testing.T) {
	searchSvc := &fakeSearch{response: domain.SearchResponse{
		Items: []domain.RankedResult{
			{TorrentResult: domain.TorrentResult{Name: "A", Seeders: 10}, HealthScore: 20, Ratio: 10},
		},
		TotalItems: 1,
	}}
	handler := newTestServer(searchSvc, &fakePlayback{})

	rec := doJSON(t, handler, http.MethodPost, "/api/torrents", `{"title":"Heat","media_type":"movie","year":"1995"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var items []domain.RankedResult
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].Name != "A" || items[0].HealthScore != 20 {
		t.Fatalf("unexpected items: %+v", items)
	}
	if searchSvc.lastQuery.Title != "Heat" || searchSvc.lastQuery.Media != domain.MediaTypeMovie {
		t.Fatalf("unexpected query: %+v", searchSvc.lastQuery)
	}
}

func TestSearchTorrentsPrefersEnglishTitle(t *testing.T) {
	searchSvc := &fakeSearch{}
	handler := newTestServer(searchSvc, &fakePlayback{})

	doJSON(t, handler, http.MethodPost, "/api/torrents", `{"title":"Das Boot (lokal)","english_title":"Das Boot","media_type":"movie"}`)
	if searchSvc.lastQuery.Title != "Das Boot" {
		t.Fatalf("title = %q, want english title", searchSvc.lastQuery.Title)
	}
}

func TestSearchTorrentsMissingTitleReturnsEmptyArray(t *testing.T) {
	searchSvc := &fakeSearch{}
	handler := newTestServer(searchSvc, &fakePlayback{})

	rec := doJSON(t, handler, http.MethodPost, "/api/torrents", `{"media_type":"movie"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("body = %q, want []", got)
	}
	if searchSvc.calls != 0 {
		t.Fatalf("search called %d times for empty title", searchSvc.calls)
	}
}

func TestSearchTorrentsInvalidMediaType(t *testing.T) {
	handler := newTestServer(&fakeSearch{}, &fakePlayback{})

	rec := doJSON(t, handler, http.MethodPost, "/api/torrents", `{"title":"Heat","media_type":"radio"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_request") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestSearchTorrentsDefaultsToMovie(t *testing.T) {
	searchSvc := &fakeSearch{}
	handler := newTestServer(searchSvc, &fakePlayback{})

	doJSON(t, handler, http.MethodPost, "/api/torrents", `{"title":"Heat"}`)
	if searchSvc.lastQuery.Media != domain.MediaTypeMovie {
		t.Fatalf("media = %q, want movie default", searchSvc.lastQuery.Media)
	}
}

func TestPlayTorrent(t *testing.T) {
	playbackSvc := &fakePlayback{result: domain.PlaybackSuccess("http://127.0.0.1:8090/stream?link=abc&index=1&play", "abc", "Torrent successfully added")}
	handler := newTestServer(&fakeSearch{}, playbackSvc)

	rec := doJSON(t, handler, http.MethodPost, "/api/play-torrent", `{"magnet":"magnet:?xt=urn:btih:`+strings.Repeat("a", 40)+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result domain.PlaybackResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.Hash != "abc" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if playbackSvc.calls != 1 {
		t.Fatalf("trigger calls = %d", playbackSvc.calls)
	}
}

func TestPlayTorrentMissingMagnet(t *testing.T) {
	playbackSvc := &fakePlayback{}
	handler := newTestServer(&fakeSearch{}, playbackSvc)

	rec := doJSON(t, handler, http.MethodPost, "/api/play-torrent", `{"magnet":"  "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result domain.PlaybackResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Success || result.Error != "Missing magnet link" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if playbackSvc.calls != 0 {
		t.Fatalf("trigger called for empty magnet")
	}
}

func TestTorrServerStatus(t *testing.T) {
	handler := newTestServer(&fakeSearch{}, &fakePlayback{online: true})

	rec := doJSON(t, handler, http.MethodGet, "/api/torrserver-status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "online" || payload["url"] != "http://127.0.0.1:8090" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestTrackerStatus(t *testing.T) {
	searchSvc := &fakeSearch{statuses: map[string]domain.TrackerStatus{
		"YTS": {Available: true, Name: "YTS", URL: "https://yts.example"},
	}}
	handler := newTestServer(searchSvc, &fakePlayback{})

	rec := doJSON(t, handler, http.MethodGet, "/api/tracker-status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]domain.TrackerStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s := payload["YTS"]; !s.Available || s.URL != "https://yts.example" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestSearchTorrentsResolvesEnglishTitleFromCatalog(t *testing.T) {
	searchSvc := &fakeSearch{}
	catalog := &fakeCatalog{enabled: true, englishTitle: "The Lives of Others"}
	handler := newTestServer(searchSvc, &fakePlayback{}, WithCatalog(catalog))

	doJSON(t, handler, http.MethodPost, "/api/torrents", `{"title":"Zivoty tech druhych","tmdb_id":582,"media_type":"movie"}`)
	if searchSvc.lastQuery.Title != "The Lives of Others" {
		t.Fatalf("title = %q, want catalog english title", searchSvc.lastQuery.Title)
	}
}

func TestSuggest(t *testing.T) {
	suggest := &fakeCatalog{enabled: true, results: []tmdb.SearchResult{
		{ID: 1, Title: "Heat", MediaType: "movie", ReleaseDate: "1995-12-15"},
	}}
	handler := newTestServer(&fakeSearch{}, &fakePlayback{}, WithCatalog(suggest))

	rec := doJSON(t, handler, http.MethodGet, "/api/suggest?q=heat", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		Items []suggestItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].Title != "Heat" || payload.Items[0].Year != 1995 {
		t.Fatalf("unexpected items: %+v", payload.Items)
	}
}

func TestSuggestDisabledReturnsEmpty(t *testing.T) {
	handler := newTestServer(&fakeSearch{}, &fakePlayback{}, WithCatalog(&fakeCatalog{enabled: false}))

	rec := doJSON(t, handler, http.MethodGet, "/api/suggest?q=heat", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(&fakeSearch{}, &fakePlayback{})

	rec := doJSON(t, handler, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestServer(&fakeSearch{}, &fakePlayback{})

	rec := doJSON(t, handler, http.MethodGet, "/api/torrents", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
