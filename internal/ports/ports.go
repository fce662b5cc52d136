package ports

import (
	"context"
	"errors"

	"MockMate/internal/domain"
)

// Generation is the raw output of the external question-generation capability.
type Generation struct {
	Content    string
	Rationale  string
	Confidence float64
}

// Evaluation is the result of scoring a candidate answer.
type Evaluation struct {
	Score    int
	Feedback string
}

// QuestionGenerator turns a news item into an interview question via an
// external, potentially slow and rate-limited service.
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, item domain.NewsItem, position domain.Position) (Generation, error)
}

// AnswerEvaluator scores a user's answer to a question. It shares the external
// generation dependency but is consumed outside the ingestion pipeline.
type AnswerEvaluator interface {
	EvaluateAnswer(ctx context.Context, question, answer string) (Evaluation, error)
}

// QuestionQuery filters and bounds a trending-question lookup. Zero-valued
// Category/Position mean "any".
type QuestionQuery struct {
	Category domain.Category
	Position domain.Position
	Limit    int
	DaysBack int
}

// QuestionStore persists sources, news items, and generated questions.
// Results of TrendingQuestions are ordered by relevance descending, ties
// broken by publication recency descending.
type QuestionStore interface {
	UpsertSource(ctx context.Context, src domain.Source) (domain.Source, error)
	ListSources(ctx context.Context) ([]domain.Source, error)
	TouchSourceFetched(ctx context.Context, sourceID int64) error

	SeenURLs(ctx context.Context, urls []string) (map[string]bool, error)
	SaveItems(ctx context.Context, items []domain.NewsItem) ([]domain.NewsItem, error)
	AdvanceItemStatus(ctx context.Context, itemID int64, status domain.ProcessingStatus) error

	SaveQuestion(ctx context.Context, q domain.TrendingQuestion) error
	TrendingQuestions(ctx context.Context, query QuestionQuery) ([]domain.TrendingQuestion, error)

	UserPreferences(ctx context.Context, userID int64) (domain.UserPreferences, error)
	SaveUserPreferences(ctx context.Context, prefs domain.UserPreferences) error
}

// TransientError marks a capability failure worth one retry: timeouts, rate
// limits, upstream 5xx. Anything else is treated as permanent for the item.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether the error may clear on a single retry.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ErrPermissionDenied reports that the host environment refused to show a
// platform-level notification. Non-fatal: callers still record the push.
var ErrPermissionDenied = errors.New("notification permission denied")

// Notifier surfaces a question through a platform notification channel.
type Notifier interface {
	Notify(ctx context.Context, userID int64, question domain.TrendingQuestion) error
}
