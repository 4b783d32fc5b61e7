package yts

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mediastream/discovery/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

const sampleResponse = `{
  "status": "ok",
  "data": {
    "movies": [
      {
        "title": "Inception",
        "year": 2010,
        "torrents": [
          {"hash": "DEADBEEFDEADBEEFDEADBEEFDEADBEEFDEADBEEF", "quality": "1080p", "size": "2.1 GB", "seeds": 120, "peers": 30},
          {"hash": "", "quality": "720p", "size": "1.1 GB", "seeds": 80, "peers": 10}
        ]
      }
    ]
  }
}`

func TestSearchParsesTorrentVariants(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query_term")
		if r.URL.Query().Get("sort_by") != "seeds" {
			t.Errorf("sort_by = %q, want seeds", r.URL.Query().Get("sort_by"))
		}
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL, Client: srv.Client()}, testLogger())
	results, err := p.Search(context.Background(), domain.SearchQuery{Title: "Inception", Media: domain.MediaTypeMovie})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "Inception" {
		t.Fatalf("query_term = %q, want Inception", gotQuery)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (empty hash skipped)", len(results))
	}
	r := results[0]
	if r.Name != "Inception (2010) 1080p [YTS]" {
		t.Fatalf("name = %q", r.Name)
	}
	if r.Source != "YTS" || r.Seeders != 120 || r.Leechers != 30 {
		t.Fatalf("unexpected result fields: %+v", r)
	}
	if !strings.HasPrefix(r.Magnet, "magnet:?xt=urn:btih:DEADBEEF") {
		t.Fatalf("magnet = %q", r.Magnet)
	}
}

func TestSearchSkipsTVQueries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for tv queries")
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL, Client: srv.Client()}, testLogger())
	results, err := p.Search(context.Background(), domain.SearchQuery{Title: "Lost", Media: domain.MediaTypeTV})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results != nil {
		t.Fatalf("got %d results, want none", len(results))
	}
}

func TestSearchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "data": {"movies": []}}`))
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL, Client: srv.Client()}, testLogger())
	results, err := p.Search(context.Background(), domain.SearchQuery{Title: "x", Media: domain.MediaTypeMovie})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL, Client: srv.Client()}, testLogger())
	if _, err := p.Search(context.Background(), domain.SearchQuery{Title: "x", Media: domain.MediaTypeMovie}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","data":{"movies":[]}}`))
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL, Client: srv.Client()}, testLogger())
	if !p.Available(context.Background()) {
		t.Fatal("expected provider to be available")
	}
	srv.Close()
	if p.Available(context.Background()) {
		t.Fatal("expected provider to be unavailable after close")
	}
}
