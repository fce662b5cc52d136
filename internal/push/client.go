package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"MockMate/internal/domain"
)

const defaultFeedLimit = 10

// APIClient talks to the trending-question API on behalf of one client. It
// implements QuestionFeed and PreferenceSource for the push scheduler.
type APIClient struct {
	baseURL string
	client  *http.Client
}

var (
	_ QuestionFeed     = (*APIClient)(nil)
	_ PreferenceSource = (*APIClient)(nil)
)

// NewAPIClient points the client at the API server, e.g. "http://localhost:5200".
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Questions fetches ranked trending questions filtered by the user's
// preferred position.
func (c *APIClient) Questions(ctx context.Context, prefs domain.UserPreferences) ([]domain.TrendingQuestion, error) {
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", defaultFeedLimit))
	if prefs.PreferredPosition != "" {
		query.Set("position", string(prefs.PreferredPosition))
	}

	var body struct {
		Questions []struct {
			ID           string    `json:"id"`
			Content      string    `json:"content"`
			Position     string    `json:"position"`
			Category     string    `json:"category"`
			Difficulty   string    `json:"difficulty"`
			QuestionType string    `json:"question_type"`
			Relevance    float64   `json:"relevance_score"`
			SourceTitle  string    `json:"source_title"`
			SourceURL    string    `json:"source_url"`
			PublishedAt  time.Time `json:"published_at"`
		} `json:"questions"`
	}
	if err := c.getJSON(ctx, "/api/trending-questions?"+query.Encode(), &body); err != nil {
		return nil, err
	}

	questions := make([]domain.TrendingQuestion, 0, len(body.Questions))
	for _, q := range body.Questions {
		questions = append(questions, domain.TrendingQuestion{
			ID:          q.ID,
			Content:     q.Content,
			Position:    domain.Position(q.Position),
			Category:    domain.Category(q.Category),
			Difficulty:  domain.Difficulty(q.Difficulty),
			Type:        domain.QuestionType(q.QuestionType),
			Relevance:   q.Relevance,
			SourceTitle: q.SourceTitle,
			SourceURL:   q.SourceURL,
			PublishedAt: q.PublishedAt,
		})
	}
	return questions, nil
}

// UserPreferences fetches the user's stored preferences.
func (c *APIClient) UserPreferences(ctx context.Context, userID int64) (domain.UserPreferences, error) {
	var body struct {
		UserID            int64  `json:"user_id"`
		PreferredPosition string `json:"preferred_position"`
		DifficultyLevel   string `json:"difficulty_level"`
		DailyQuestionGoal int    `json:"daily_question_goal"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/api/users/%d/preferences", userID), &body); err != nil {
		return domain.UserPreferences{}, err
	}

	return domain.UserPreferences{
		UserID:            body.UserID,
		PreferredPosition: domain.Position(body.PreferredPosition),
		DifficultyLevel:   domain.Difficulty(body.DifficultyLevel),
		DailyQuestionGoal: body.DailyQuestionGoal,
	}, nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api error: %s", resp.Status)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
