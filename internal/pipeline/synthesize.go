package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"MockMate/internal/domain"
	"MockMate/internal/ports"
)

// minRelevance is the floor below which items are not worth a generation call.
const minRelevance = 0.3

// ErrBelowThreshold reports that an item's relevance did not justify
// question generation; the item is skipped, not failed.
var ErrBelowThreshold = errors.New("relevance below synthesis threshold")

// Synthesizer turns one scored news item into a trending question via the
// external generation capability. Attempts are bounded: one call plus one
// retry on a transient failure.
type Synthesizer struct {
	generator ports.QuestionGenerator
	logger    *slog.Logger
	now       func() time.Time
}

// NewSynthesizer wires the generation capability.
func NewSynthesizer(generator ports.QuestionGenerator, log *slog.Logger) *Synthesizer {
	return &Synthesizer{
		generator: generator,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Synthesize generates a question for the item targeted at the given
// position. A persistent generation failure is returned to the caller, who
// marks the item failed; the error never aborts the surrounding cycle.
func (s *Synthesizer) Synthesize(ctx context.Context, item domain.NewsItem, position domain.Position, difficulty domain.Difficulty) (domain.TrendingQuestion, error) {
	if item.Relevance < minRelevance {
		return domain.TrendingQuestion{}, ErrBelowThreshold
	}
	if difficulty == "" {
		difficulty = domain.DifficultyMedium
	}

	gen, err := s.generator.GenerateQuestion(ctx, item, position)
	if err != nil && ports.IsTransient(err) {
		s.log("generation retry after transient failure", "item", item.ID, "error", err)
		gen, err = s.generator.GenerateQuestion(ctx, item, position)
	}
	if err != nil {
		return domain.TrendingQuestion{}, fmt.Errorf("generate question for item %d: %w", item.ID, err)
	}

	s.log("question generated", "item", item.ID, "position", position, "confidence", gen.Confidence)

	return domain.TrendingQuestion{
		ID:          uuid.NewString(),
		NewsItemID:  item.ID,
		Content:     gen.Content,
		Position:    position,
		Category:    item.Category,
		Difficulty:  difficulty,
		Type:        classifyQuestionType(gen.Content),
		Relevance:   item.Relevance,
		Rationale:   gen.Rationale,
		SourceTitle: item.Title,
		SourceURL:   item.URL,
		PublishedAt: item.PublishedAt,
		CreatedAt:   s.now(),
	}, nil
}

// classifyQuestionType infers the answer style a question invites from its
// phrasing.
func classifyQuestionType(question string) domain.QuestionType {
	lower := strings.ToLower(question)

	for _, marker := range []string{"how would you", "what do you think", "your opinion", "perspective"} {
		if strings.Contains(lower, marker) {
			return domain.TypeOpinion
		}
	}
	for _, marker := range []string{"implement", "design", "architecture", "technical", "code"} {
		if strings.Contains(lower, marker) {
			return domain.TypeTechnical
		}
	}
	return domain.TypeBehavioral
}

func (s *Synthesizer) log(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
