package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"MockMate/internal/domain"
)

const apiMaxResponseBytes = 1 << 20 // 1MB

// APIFetcher pulls items from Algolia-style JSON search endpoints
// (Hacker News search is the only configured instance today).
type APIFetcher struct {
	client *http.Client
	logger *slog.Logger
}

var _ Fetcher = (*APIFetcher)(nil)

// NewAPIFetcher wires an HTTP client; client may be nil for a sane default.
func NewAPIFetcher(client *http.Client, log *slog.Logger) *APIFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIFetcher{client: client, logger: log}
}

// Kind tags this strategy for registry resolution.
func (a *APIFetcher) Kind() domain.SourceKind { return domain.KindAPI }

type searchResponse struct {
	Hits []searchHit `json:"hits"`
}

type searchHit struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	StoryText string `json:"story_text"`
	Points    int    `json:"points"`
	CreatedAt string `json:"created_at"`
}

// Fetch queries the source endpoint and maps up to limit hits into raw items.
func (a *APIFetcher) Fetch(ctx context.Context, src domain.Source, limit int) ([]domain.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", src.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query %s: unexpected status %s", src.URL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, apiMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	now := time.Now().UTC()
	items := make([]domain.RawItem, 0, min(limit, len(parsed.Hits)))
	for _, hit := range parsed.Hits {
		if len(items) >= limit {
			break
		}
		if hit.Title == "" || hit.URL == "" {
			continue
		}

		publishedAt := now
		if hit.CreatedAt != "" {
			if ts, err := time.Parse(time.RFC3339, hit.CreatedAt); err == nil {
				publishedAt = ts.UTC()
			}
		}

		summary := truncateRunes(strings.TrimSpace(hit.StoryText), maxSummaryRunes)
		if summary == "" {
			summary = fmt.Sprintf("Hacker News story with %d points", hit.Points)
		}

		items = append(items, domain.RawItem{
			Title:       strings.TrimSpace(hit.Title),
			Summary:     summary,
			Content:     truncateRunes(strings.TrimSpace(hit.StoryText), maxContentRunes),
			URL:         hit.URL,
			PublishedAt: publishedAt,
		})
	}

	if a.logger != nil {
		a.logger.Debug("api fetched", "source", src.Name, "hits", len(parsed.Hits), "items", len(items))
	}
	return items, nil
}
