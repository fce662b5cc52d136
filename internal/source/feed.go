package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"MockMate/internal/domain"
)

const (
	feedUserAgent   = "MockMate/1.0 (+https://github.com/mockmate)"
	maxSummaryRunes = 1000
	maxContentRunes = 2000
)

// FeedFetcher pulls items from RSS/Atom feeds.
type FeedFetcher struct {
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ Fetcher = (*FeedFetcher)(nil)

// NewFeedFetcher wires a gofeed parser; client may be nil for a sane default.
func NewFeedFetcher(client *http.Client, log *slog.Logger) *FeedFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = feedUserAgent
	return &FeedFetcher{parser: parser, logger: log}
}

// Kind tags this strategy for registry resolution.
func (f *FeedFetcher) Kind() domain.SourceKind { return domain.KindFeed }

// Fetch parses the source feed and maps up to limit entries into raw items.
func (f *FeedFetcher) Fetch(ctx context.Context, src domain.Source, limit int) ([]domain.RawItem, error) {
	feed, err := f.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.URL, err)
	}

	if len(feed.Items) == 0 {
		f.debug("feed returned no entries", "source", src.Name, "url", src.URL)
		return nil, nil
	}

	now := time.Now().UTC()
	items := make([]domain.RawItem, 0, min(limit, len(feed.Items)))
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		if entry.Link == "" {
			continue
		}

		publishedAt := now
		if entry.PublishedParsed != nil {
			publishedAt = entry.PublishedParsed.UTC()
		}

		content := entry.Content
		if content == "" {
			content = entry.Description
		}

		items = append(items, domain.RawItem{
			Title:       strings.TrimSpace(entry.Title),
			Summary:     truncateRunes(stripHTML(entry.Description), maxSummaryRunes),
			Content:     truncateRunes(stripHTML(content), maxContentRunes),
			URL:         entry.Link,
			PublishedAt: publishedAt,
		})
	}

	f.debug("feed fetched", "source", src.Name, "entries", len(feed.Items), "items", len(items))
	return items, nil
}

// stripHTML extracts visible text from feed summaries, which dev.to and
// similar feeds ship as HTML fragments.
func stripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func (f *FeedFetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
