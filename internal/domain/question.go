package domain

import "time"

// Position is the interview role a question targets.
type Position string

const (
	PositionFrontend  Position = "frontend"
	PositionBackend   Position = "backend"
	PositionFullstack Position = "fullstack"
	PositionMobile    Position = "mobile"
	PositionDevOps    Position = "devops"
)

// DefaultPositions lists the roles questions are generated for when no
// preference narrows the set.
func DefaultPositions() []Position {
	return []Position{PositionFrontend, PositionBackend, PositionFullstack, PositionMobile, PositionDevOps}
}

// Difficulty classifies how demanding a question is.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// QuestionType describes what kind of answer a question invites.
type QuestionType string

const (
	TypeOpinion    QuestionType = "opinion"
	TypeTechnical  QuestionType = "technical"
	TypeBehavioral QuestionType = "behavioral"
)

// TrendingQuestion is an interview question derived from one news item.
// It is a derived artifact: created once, never mutated.
type TrendingQuestion struct {
	ID          string
	NewsItemID  int64
	Content     string
	Position    Position
	Category    Category
	Difficulty  Difficulty
	Type        QuestionType
	Relevance   float64
	Rationale   string
	SourceTitle string
	SourceURL   string
	PublishedAt time.Time
	CreatedAt   time.Time
}

// UserPreferences parameterizes per-user question selection.
type UserPreferences struct {
	UserID            int64
	PreferredPosition Position
	DifficultyLevel   Difficulty
	DailyQuestionGoal int
	UpdatedAt         time.Time
}
