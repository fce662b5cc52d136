// Package pipeline implements the ingestion workflow: fetch configured
// sources, deduplicate and score new items, synthesize interview questions,
// and persist the results on a fixed schedule.
package pipeline

import (
	"sort"
	"strings"
	"time"

	"MockMate/internal/domain"
)

const (
	baseRelevance     = 0.5
	keywordBoost      = 0.1
	dayRecencyBoost   = 0.2
	threeDayBoost     = 0.1
	recencyDayWindow  = 24 * time.Hour
	recencyLateWindow = 72 * time.Hour
)

var positionKeywords = map[domain.Position][]string{
	domain.PositionFrontend:  {"react", "vue", "angular", "javascript", "css", "html", "ui", "ux"},
	domain.PositionBackend:   {"api", "database", "server", "python", "java", "node", "sql"},
	domain.PositionFullstack: {"full stack", "frontend", "backend", "web development"},
	domain.PositionMobile:    {"mobile", "ios", "android", "react native", "flutter", "app"},
	domain.PositionDevOps:    {"docker", "kubernetes", "aws", "cloud", "deployment", "ci/cd"},
}

// ScoredItem annotates a raw item with the best-matching target position and
// its relevance against that position.
type ScoredItem struct {
	domain.RawItem
	Position  domain.Position
	Relevance float64
}

// Scorer deduplicates raw batches and computes relevance scores. The clock is
// injectable so recency boosts are deterministic in tests.
type Scorer struct {
	positions []domain.Position
	now       func() time.Time
}

// NewScorer builds a scorer over the given candidate positions; nil means the
// default position set.
func NewScorer(positions []domain.Position, now func() time.Time) *Scorer {
	if len(positions) == 0 {
		positions = domain.DefaultPositions()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Scorer{positions: positions, now: now}
}

// ScoreBatch drops items whose fingerprint is in seen (or repeats within the
// batch) and scores the remainder. Output is ordered by relevance descending,
// ties broken by recency descending. Running the same batch against a seen
// set that includes its fingerprints yields an empty result, which makes
// deduplication idempotent.
func (s *Scorer) ScoreBatch(items []domain.RawItem, seen map[string]bool) []ScoredItem {
	now := s.now()
	inBatch := make(map[string]bool, len(items))

	var out []ScoredItem
	for _, item := range items {
		fp := item.Fingerprint()
		if fp == "" || seen[fp] || inBatch[fp] {
			continue
		}
		inBatch[fp] = true

		position, relevance := s.bestPosition(item, now)
		out = append(out, ScoredItem{RawItem: item, Position: position, Relevance: relevance})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})

	return out
}

// Score computes the relevance of one item against one position.
func (s *Scorer) Score(item domain.RawItem, position domain.Position, now time.Time) float64 {
	score := baseRelevance

	title := strings.ToLower(item.Title)
	summary := strings.ToLower(item.Summary)
	for _, keyword := range positionKeywords[position] {
		if strings.Contains(title, keyword) || strings.Contains(summary, keyword) {
			score += keywordBoost
		}
	}

	age := now.Sub(item.PublishedAt)
	switch {
	case age <= recencyDayWindow:
		score += dayRecencyBoost
	case age <= recencyLateWindow:
		score += threeDayBoost
	}

	return clamp01(score)
}

// bestPosition picks the position the item scores highest against. The
// candidate order breaks exact ties, keeping selection deterministic.
func (s *Scorer) bestPosition(item domain.RawItem, now time.Time) (domain.Position, float64) {
	best := s.positions[0]
	bestScore := s.Score(item, best, now)
	for _, position := range s.positions[1:] {
		if score := s.Score(item, position, now); score > bestScore {
			best, bestScore = position, score
		}
	}
	return best, bestScore
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
