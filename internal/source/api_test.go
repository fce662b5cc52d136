package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MockMate/internal/domain"
)

func TestAPIFetcherFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hits": [
				{"title": "Go 1.25 released", "url": "https://example.org/go", "story_text": "Release notes.", "points": 420, "created_at": "2025-03-03T08:00:00Z"},
				{"title": "", "url": "https://example.org/untitled", "points": 3},
				{"title": "No URL story", "points": 5},
				{"title": "Quiet story", "url": "https://example.org/quiet", "points": 12, "created_at": "2025-03-02T08:00:00Z"}
			]
		}`))
	}))
	defer server.Close()

	fetcher := NewAPIFetcher(server.Client(), nil)
	src := domain.Source{Name: "hn", Kind: domain.KindAPI, URL: server.URL}

	items, err := fetcher.Fetch(context.Background(), src, 10)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items (incomplete hits skipped), got %d", len(items))
	}

	first := items[0]
	if first.Title != "Go 1.25 released" || first.Summary != "Release notes." {
		t.Fatalf("unexpected first item: %+v", first)
	}
	want := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("unexpected published time: %v", first.PublishedAt)
	}

	// Hits without story text get a synthetic points summary.
	if items[1].Summary != "Hacker News story with 12 points" {
		t.Fatalf("unexpected fallback summary: %q", items[1].Summary)
	}
}

func TestAPIFetcherStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	fetcher := NewAPIFetcher(server.Client(), nil)
	src := domain.Source{Name: "hn", Kind: domain.KindAPI, URL: server.URL}

	if _, err := fetcher.Fetch(context.Background(), src, 5); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestAPIFetcherLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits": [
			{"title": "a", "url": "https://example.org/a"},
			{"title": "b", "url": "https://example.org/b"},
			{"title": "c", "url": "https://example.org/c"}
		]}`))
	}))
	defer server.Close()

	fetcher := NewAPIFetcher(server.Client(), nil)
	src := domain.Source{Name: "hn", Kind: domain.KindAPI, URL: server.URL}

	items, err := fetcher.Fetch(context.Background(), src, 2)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}
