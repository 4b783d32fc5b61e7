package tpb

import (
	"context"
	"fmt"
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

const samplePage = `<html><body>
<table id="searchResult">
<tr>
  <td><a href="/torrent/1" class="detLink" title="Details for Breaking Bad S01E01 720p HDTV">Breaking Bad S01E01 720p HDTV</a></td>
  <td><a href="magnet:?xt=urn:btih:aabbccddeeff00112233445566778899aabbccdd&dn=bb">magnet</a>
  <font class="detDesc">Uploaded 2010, Size 1.09 GiB, ULed by someone</font></td>
  <td align="right">412</td>
  <td align="right">23</td>
</tr>
<tr>
  <td><a href="/torrent/2" class="detLink" title="Details for Broken Row">Broken Row</a></td>
  <td>no magnet here</td>
  <td align="right">5</td>
  <td align="right">1</td>
</tr>
</table>
</body></html>`

func TestSearchParsesRows(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	p := New(Config{Mirrors: []string{srv.URL}, Client: srv.Client()}, testLogger())
	results, err := p.Search(context.Background(), domain.SearchQuery{
		Title: "Breaking Bad", Media: domain.MediaTypeTV, Season: 1, Episode: 1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.HasSuffix(gotPath, "/1/99/200") {
		t.Fatalf("path = %q, want tv category 200", gotPath)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (magnet-less row skipped)", len(results))
	}
	r := results[0]
	if r.Name != "Breaking Bad S01E01 720p HDTV [TPB]" {
		t.Fatalf("name = %q", r.Name)
	}
	if r.Seeders != 412 || r.Leechers != 23 {
		t.Fatalf("seeders/leechers = %d/%d", r.Seeders, r.Leechers)
	}
	if r.Size != "1.09 GiB" {
		t.Fatalf("size = %q", r.Size)
	}
	if r.InfoHash != "aabbccddeeff00112233445566778899aabbccdd" {
		t.Fatalf("hash = %q", r.InfoHash)
	}
	if r.Quality != "720p" {
		t.Fatalf("quality = %q", r.Quality)
	}
}

func TestSearchEscapesSpacesAsPercent20(t *testing.T) {
	var gotURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.RequestURI
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	p := New(Config{Mirrors: []string{srv.URL}, Client: srv.Client()}, testLogger())
	_, err := p.Search(context.Background(), domain.SearchQuery{
		Title: "Breaking Bad", Media: domain.MediaTypeTV, Season: 1, Episode: 1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Mirrors take the query as a path segment; "+" there is a literal plus.
	if want := "/search/Breaking%20Bad%20S01E01/1/99/200"; gotURI != want {
		t.Fatalf("request URI = %q, want %q", gotURI, want)
	}
}

func TestSearchMovieCategory(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	p := New(Config{Mirrors: []string{srv.URL}, Client: srv.Client()}, testLogger())
	if _, err := p.Search(context.Background(), domain.SearchQuery{Title: "Heat", Media: domain.MediaTypeMovie}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.HasSuffix(gotPath, "/1/99/201") {
		t.Fatalf("path = %q, want movie category 201", gotPath)
	}
}

func TestSearchFallsBackThroughMirrors(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer good.Close()

	p := New(Config{Mirrors: []string{bad.URL, good.URL}, Client: good.Client()}, testLogger())
	results, err := p.Search(context.Background(), domain.SearchQuery{Title: "Heat", Media: domain.MediaTypeMovie})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results from fallback mirror, want 1", len(results))
	}
}

func TestSearchAllMirrorsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := New(Config{Mirrors: []string{srv.URL, srv.URL}, Client: srv.Client()}, testLogger())
	if _, err := p.Search(context.Background(), domain.SearchQuery{Title: "x", Media: domain.MediaTypeMovie}); err == nil {
		t.Fatal("expected error when every mirror fails")
	}
}

func TestSearchNoTableIsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>no results</body></html>"))
	}))
	defer srv.Close()

	p := New(Config{Mirrors: []string{srv.URL}, Client: srv.Client()}, testLogger())
	results, err := p.Search(context.Background(), domain.SearchQuery{Title: "x", Media: domain.MediaTypeMovie})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}

func TestParsePageCapsRows(t *testing.T) {
	var rows strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&rows, `<tr>
  <td><a class="detLink" title="Details for Item %d">Item %d</a></td>
  <td><a href="magnet:?xt=urn:btih:aabbccddeeff00112233445566778899aabbccdd">m</a>
  Size 700 MiB,</td>
  <td align="right">10</td>
  <td align="right">2</td>
</tr>`, i, i)
	}
	page := `<table id="searchResult">` + rows.String() + `</table>`

	p := New(Config{MaxResults: 20}, testLogger())
	results := p.parsePage(page)
	if len(results) != 20 {
		t.Fatalf("got %d results, want cap of 20", len(results))
	}
}

func TestAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()
	down := httptest.NewServer(http.HandlerFunc(nil))
	down.Close()

	p := New(Config{Mirrors: []string{down.URL, srv.URL}, Client: srv.Client()}, testLogger())
	if !p.Available(context.Background()) {
		t.Fatal("expected available when one mirror answers")
	}

	p = New(Config{Mirrors: []string{down.URL}, Client: srv.Client()}, testLogger())
	if p.Available(context.Background()) {
		t.Fatal("expected unavailable when no mirror answers")
	}
}
