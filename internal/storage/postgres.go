// Package storage implements the Postgres-backed question store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"MockMate/internal/domain"
	"MockMate/internal/ports"
)

const defaultQueryLimit = 10

// Postgres persists sources, news items, and generated questions.
type Postgres struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.QuestionStore = (*Postgres)(nil)

// NewPostgres wires a sql.DB implementation.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate creates the schema if it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS news_sources (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			kind TEXT NOT NULL,
			url TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_fetched TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS news_items (
			id BIGSERIAL PRIMARY KEY,
			source_id BIGINT NOT NULL REFERENCES news_sources(id),
			title TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			published_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			relevance DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS trending_questions (
			id TEXT PRIMARY KEY,
			news_item_id BIGINT NOT NULL REFERENCES news_items(id),
			content TEXT NOT NULL,
			position TEXT NOT NULL,
			category TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			question_type TEXT NOT NULL,
			relevance DOUBLE PRECISION NOT NULL,
			rationale TEXT NOT NULL DEFAULT '',
			source_title TEXT NOT NULL,
			source_url TEXT NOT NULL,
			published_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id BIGINT PRIMARY KEY,
			preferred_position TEXT NOT NULL DEFAULT 'frontend',
			difficulty_level TEXT NOT NULL DEFAULT 'medium',
			daily_question_goal INTEGER NOT NULL DEFAULT 5,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_relevance
			ON trending_questions (relevance DESC, published_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

// UpsertSource inserts or refreshes a source by name and returns the stored
// row. The last fetched timestamp is never touched here.
func (p *Postgres) UpsertSource(ctx context.Context, src domain.Source) (domain.Source, error) {
	query := `INSERT INTO news_sources (name, category, kind, url, active)
              VALUES ($1, $2, $3, $4, $5)
              ON CONFLICT (name) DO UPDATE
              SET category = EXCLUDED.category,
                  kind = EXCLUDED.kind,
                  url = EXCLUDED.url,
                  active = EXCLUDED.active
              RETURNING id, last_fetched`

	var lastFetched sql.NullTime
	err := p.db.QueryRowContext(ctx, query,
		src.Name, src.Category, src.Kind, src.URL, src.Active,
	).Scan(&src.ID, &lastFetched)
	if err != nil {
		return domain.Source{}, fmt.Errorf("upsert source: %w", err)
	}
	if lastFetched.Valid {
		src.LastFetched = lastFetched.Time
	}

	return src, nil
}

// ListSources returns every active source.
func (p *Postgres) ListSources(ctx context.Context) ([]domain.Source, error) {
	query := `SELECT id, name, category, kind, url, active, last_fetched
              FROM news_sources WHERE active ORDER BY id`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		var (
			src         domain.Source
			lastFetched sql.NullTime
		)
		if err := rows.Scan(&src.ID, &src.Name, &src.Category, &src.Kind, &src.URL, &src.Active, &lastFetched); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		if lastFetched.Valid {
			src.LastFetched = lastFetched.Time
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return sources, nil
}

// TouchSourceFetched records a successful fetch.
func (p *Postgres) TouchSourceFetched(ctx context.Context, sourceID int64) error {
	if _, err := p.db.ExecContext(ctx,
		`UPDATE news_sources SET last_fetched = NOW() WHERE id = $1`, sourceID); err != nil {
		return fmt.Errorf("touch source: %w", err)
	}
	return nil
}

// SeenURLs returns a map with the URLs that already exist in storage.
func (p *Postgres) SeenURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	if len(urls) == 0 {
		return map[string]bool{}, nil
	}

	query := `SELECT url FROM news_items WHERE url = ANY($1)`

	rows, err := p.db.QueryContext(ctx, query, pq.StringArray(urls))
	if err != nil {
		return nil, fmt.Errorf("query seen urls: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		seen[url] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return seen, nil
}

// SaveItems inserts new items and returns them with assigned IDs. An item
// whose URL raced in since the dedup check is silently dropped.
func (p *Postgres) SaveItems(ctx context.Context, items []domain.NewsItem) ([]domain.NewsItem, error) {
	query := `INSERT INTO news_items
              (source_id, title, summary, content, url, category, published_at, status, relevance)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
              ON CONFLICT (url) DO NOTHING
              RETURNING id, created_at`

	saved := make([]domain.NewsItem, 0, len(items))
	for _, item := range items {
		err := p.db.QueryRowContext(ctx, query,
			item.SourceID, item.Title, item.Summary, item.Content, item.URL,
			item.Category, item.PublishedAt, item.Status, item.Relevance,
		).Scan(&item.ID, &item.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return saved, fmt.Errorf("insert item %q: %w", item.URL, err)
		}
		saved = append(saved, item)
	}

	return saved, nil
}

// checkTransition rejects status changes that lower the rank or rewrite a
// terminal status with a different one.
func checkTransition(current, next domain.ProcessingStatus) error {
	if current.Terminal() && next != current {
		return fmt.Errorf("transition %s -> %s rewrites a terminal status", current, next)
	}
	if next.Rank() < current.Rank() {
		return fmt.Errorf("transition %s -> %s moves backwards", current, next)
	}
	return nil
}

// AdvanceItemStatus moves an item forward along the pipeline. Transitions
// that lower the status rank or rewrite a terminal status are rejected.
func (p *Postgres) AdvanceItemStatus(ctx context.Context, itemID int64, status domain.ProcessingStatus) error {
	var current domain.ProcessingStatus
	err := p.db.QueryRowContext(ctx,
		`SELECT status FROM news_items WHERE id = $1`, itemID).Scan(&current)
	if err != nil {
		return fmt.Errorf("load item %d status: %w", itemID, err)
	}

	if err := checkTransition(current, status); err != nil {
		return fmt.Errorf("item %d: %w", itemID, err)
	}

	if _, err := p.db.ExecContext(ctx,
		`UPDATE news_items SET status = $2 WHERE id = $1`, itemID, status); err != nil {
		return fmt.Errorf("update item %d status: %w", itemID, err)
	}
	return nil
}

// SaveQuestion stores one generated question.
func (p *Postgres) SaveQuestion(ctx context.Context, q domain.TrendingQuestion) error {
	query := `INSERT INTO trending_questions
              (id, news_item_id, content, position, category, difficulty, question_type,
               relevance, rationale, source_title, source_url, published_at, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := p.db.ExecContext(ctx, query,
		q.ID, q.NewsItemID, q.Content, q.Position, q.Category, q.Difficulty, q.Type,
		q.Relevance, q.Rationale, q.SourceTitle, q.SourceURL, q.PublishedAt, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// TrendingQuestions returns questions ordered by relevance, ties broken by
// publication recency.
func (p *Postgres) TrendingQuestions(ctx context.Context, query ports.QuestionQuery) ([]domain.TrendingQuestion, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	builder := p.builder.
		Select("id", "news_item_id", "content", "position", "category", "difficulty",
			"question_type", "relevance", "rationale", "source_title", "source_url",
			"published_at", "created_at").
		From("trending_questions").
		OrderBy("relevance DESC", "published_at DESC").
		Limit(uint64(limit))

	if query.Category != "" {
		builder = builder.Where(sq.Eq{"category": query.Category})
	}
	if query.Position != "" {
		builder = builder.Where(sq.Eq{"position": query.Position})
	}
	if query.DaysBack > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -query.DaysBack)
		builder = builder.Where(sq.GtOrEq{"published_at": cutoff})
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build questions query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.TrendingQuestion
	for rows.Next() {
		var q domain.TrendingQuestion
		if err := rows.Scan(&q.ID, &q.NewsItemID, &q.Content, &q.Position, &q.Category,
			&q.Difficulty, &q.Type, &q.Relevance, &q.Rationale, &q.SourceTitle,
			&q.SourceURL, &q.PublishedAt, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return questions, nil
}

// UserPreferences returns the stored preferences for a user, or defaults when
// the user has never saved any.
func (p *Postgres) UserPreferences(ctx context.Context, userID int64) (domain.UserPreferences, error) {
	prefs := domain.UserPreferences{
		UserID:            userID,
		PreferredPosition: domain.PositionFrontend,
		DifficultyLevel:   domain.DifficultyMedium,
		DailyQuestionGoal: 5,
	}

	err := p.db.QueryRowContext(ctx,
		`SELECT preferred_position, difficulty_level, daily_question_goal, updated_at
         FROM user_preferences WHERE user_id = $1`, userID,
	).Scan(&prefs.PreferredPosition, &prefs.DifficultyLevel, &prefs.DailyQuestionGoal, &prefs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return prefs, nil
	}
	if err != nil {
		return domain.UserPreferences{}, fmt.Errorf("query preferences: %w", err)
	}

	return prefs, nil
}

// SaveUserPreferences upserts a user's preferences.
func (p *Postgres) SaveUserPreferences(ctx context.Context, prefs domain.UserPreferences) error {
	query := `INSERT INTO user_preferences
              (user_id, preferred_position, difficulty_level, daily_question_goal, updated_at)
              VALUES ($1, $2, $3, $4, NOW())
              ON CONFLICT (user_id) DO UPDATE
              SET preferred_position = EXCLUDED.preferred_position,
                  difficulty_level = EXCLUDED.difficulty_level,
                  daily_question_goal = EXCLUDED.daily_question_goal,
                  updated_at = NOW()`

	_, err := p.db.ExecContext(ctx, query,
		prefs.UserID, prefs.PreferredPosition, prefs.DifficultyLevel, prefs.DailyQuestionGoal)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}
