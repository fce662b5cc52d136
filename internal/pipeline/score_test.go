package pipeline

import (
	"testing"
	"time"

	"MockMate/internal/domain"
)

var scoreNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return scoreNow }

func TestScoreKeywordAndRecencyBoosts(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(nil, fixedNow)

	fresh := domain.RawItem{
		Title:       "Kubernetes and Docker in the cloud",
		Summary:     "deployment pipelines",
		URL:         "https://example.org/k8s",
		PublishedAt: scoreNow.Add(-2 * time.Hour),
	}

	// 0.5 base + 3 keyword hits (docker, kubernetes, cloud) + deployment = 0.4 + 0.2 recency, clamped.
	got := scorer.Score(fresh, domain.PositionDevOps, scoreNow)
	if got != 1.0 {
		t.Fatalf("expected clamped score 1.0, got %v", got)
	}

	stale := fresh
	stale.PublishedAt = scoreNow.Add(-10 * 24 * time.Hour)
	if s := scorer.Score(stale, domain.PositionDevOps, scoreNow); s >= got {
		t.Fatalf("stale item should score below fresh: %v", s)
	}

	offTopic := domain.RawItem{
		Title:       "Gardening tips",
		Summary:     "tomatoes",
		PublishedAt: scoreNow.Add(-2 * time.Hour),
	}
	if s := scorer.Score(offTopic, domain.PositionDevOps, scoreNow); s != 0.7 {
		t.Fatalf("expected base+recency 0.7, got %v", s)
	}
}

func TestScoreBatchFiltersSeenAndDuplicates(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(nil, fixedNow)

	items := []domain.RawItem{
		{Title: "a", URL: "https://example.org/a", PublishedAt: scoreNow},
		{Title: "a again", URL: "https://example.org/a", PublishedAt: scoreNow},
		{Title: "b", URL: "https://example.org/b", PublishedAt: scoreNow},
		{Title: "no url", PublishedAt: scoreNow},
	}
	seen := map[string]bool{"https://example.org/b": true}

	out := scorer.ScoreBatch(items, seen)
	if len(out) != 1 {
		t.Fatalf("expected 1 new item, got %d", len(out))
	}
	if out[0].URL != "https://example.org/a" {
		t.Fatalf("unexpected survivor: %s", out[0].URL)
	}
}

func TestScoreBatchIdempotent(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(nil, fixedNow)
	items := []domain.RawItem{
		{Title: "a", URL: "https://example.org/a", PublishedAt: scoreNow},
		{Title: "b", URL: "https://example.org/b", PublishedAt: scoreNow},
	}

	seen := map[string]bool{}
	first := scorer.ScoreBatch(items, seen)
	if len(first) != 2 {
		t.Fatalf("expected 2 items on first run, got %d", len(first))
	}

	for _, item := range first {
		seen[item.Fingerprint()] = true
	}

	second := scorer.ScoreBatch(items, seen)
	if len(second) != 0 {
		t.Fatalf("second run over same batch must be empty, got %d", len(second))
	}
}

func TestScoreBatchOrderTiesBrokenByRecency(t *testing.T) {
	t.Parallel()

	scorer := NewScorer([]domain.Position{domain.PositionBackend}, fixedNow)

	older := domain.RawItem{Title: "api design", URL: "https://example.org/old", PublishedAt: scoreNow.Add(-3 * time.Hour)}
	newer := domain.RawItem{Title: "api design again", URL: "https://example.org/new", PublishedAt: scoreNow.Add(-1 * time.Hour)}

	out := scorer.ScoreBatch([]domain.RawItem{older, newer}, nil)
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
	if out[0].Relevance != out[1].Relevance {
		t.Fatalf("fixture should produce a tie, got %v vs %v", out[0].Relevance, out[1].Relevance)
	}
	if out[0].URL != "https://example.org/new" {
		t.Fatalf("tie must be broken by recency, got %s first", out[0].URL)
	}
}

func TestScoreBatchPicksBestPosition(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(nil, fixedNow)
	item := domain.RawItem{
		Title:       "React and CSS tricks for modern UI",
		URL:         "https://example.org/react",
		PublishedAt: scoreNow,
	}

	out := scorer.ScoreBatch([]domain.RawItem{item}, nil)
	if len(out) != 1 {
		t.Fatalf("expected 1 item, got %d", len(out))
	}
	if out[0].Position != domain.PositionFrontend {
		t.Fatalf("expected frontend target, got %s", out[0].Position)
	}
}
