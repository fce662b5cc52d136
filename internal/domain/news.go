package domain

import "time"

// Category enumerates the topical domains a source can belong to.
type Category string

const (
	CategoryAI          Category = "ai"
	CategoryWebDev      Category = "webdev"
	CategoryMobile      Category = "mobile"
	CategoryDevOps      Category = "devops"
	CategoryGeneralTech Category = "general"
)

// Categories lists every known category in a stable order.
func Categories() []Category {
	return []Category{CategoryAI, CategoryWebDev, CategoryMobile, CategoryDevOps, CategoryGeneralTech}
}

// SourceKind selects the fetch mechanism for a source.
type SourceKind string

const (
	KindFeed SourceKind = "feed"
	KindAPI  SourceKind = "api"
)

// Source is a configured origin of news content.
type Source struct {
	ID          int64
	Name        string
	Category    Category
	Kind        SourceKind
	URL         string
	Active      bool
	LastFetched time.Time
}

// RawItem is a single entry as returned by a fetcher, before dedup and scoring.
type RawItem struct {
	Title       string
	Summary     string
	Content     string
	URL         string
	PublishedAt time.Time
}

// Fingerprint identifies an item for deduplication. Items carry a URL from
// every supported source kind, so the URL is the identity.
func (r RawItem) Fingerprint() string {
	return r.URL
}

// ProcessingStatus tracks a NewsItem through the pipeline. Transitions are
// monotonic: raw -> scored -> question_generated, or raw/scored -> skipped/failed.
type ProcessingStatus string

const (
	StatusRaw       ProcessingStatus = "raw"
	StatusScored    ProcessingStatus = "scored"
	StatusGenerated ProcessingStatus = "question_generated"
	StatusSkipped   ProcessingStatus = "skipped"
	StatusFailed    ProcessingStatus = "failed"
)

// Rank orders statuses along the pipeline; terminal statuses share the top rank
// so no transition can leave them.
func (s ProcessingStatus) Rank() int {
	switch s {
	case StatusRaw:
		return 0
	case StatusScored:
		return 1
	case StatusGenerated, StatusSkipped, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether the status admits no further transitions.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusGenerated || s == StatusSkipped || s == StatusFailed
}

// NewsItem is a deduplicated, persisted news entry.
type NewsItem struct {
	ID          int64
	SourceID    int64
	Title       string
	Summary     string
	Content     string
	URL         string
	Category    Category
	PublishedAt time.Time
	Status      ProcessingStatus
	Relevance   float64
	CreatedAt   time.Time
}
