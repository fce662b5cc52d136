package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"MockMate/internal/domain"
	"MockMate/internal/ports"
)

type stubStore struct {
	questions []domain.TrendingQuestion
	sources   []domain.Source
	lastQuery ports.QuestionQuery
	prefs     map[int64]domain.UserPreferences
}

func (s *stubStore) UpsertSource(_ context.Context, src domain.Source) (domain.Source, error) {
	return src, nil
}

func (s *stubStore) ListSources(context.Context) ([]domain.Source, error) {
	return s.sources, nil
}

func (s *stubStore) TouchSourceFetched(context.Context, int64) error { return nil }

func (s *stubStore) SeenURLs(context.Context, []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (s *stubStore) SaveItems(_ context.Context, items []domain.NewsItem) ([]domain.NewsItem, error) {
	return items, nil
}

func (s *stubStore) AdvanceItemStatus(context.Context, int64, domain.ProcessingStatus) error {
	return nil
}

func (s *stubStore) SaveQuestion(context.Context, domain.TrendingQuestion) error { return nil }

func (s *stubStore) TrendingQuestions(_ context.Context, query ports.QuestionQuery) ([]domain.TrendingQuestion, error) {
	s.lastQuery = query
	return s.questions, nil
}

func (s *stubStore) UserPreferences(_ context.Context, userID int64) (domain.UserPreferences, error) {
	if prefs, ok := s.prefs[userID]; ok {
		return prefs, nil
	}
	return domain.UserPreferences{
		UserID:            userID,
		PreferredPosition: domain.PositionFrontend,
		DifficultyLevel:   domain.DifficultyMedium,
		DailyQuestionGoal: 5,
	}, nil
}

func (s *stubStore) SaveUserPreferences(_ context.Context, prefs domain.UserPreferences) error {
	if s.prefs == nil {
		s.prefs = map[int64]domain.UserPreferences{}
	}
	s.prefs[prefs.UserID] = prefs
	return nil
}

type stubTrigger struct {
	runs atomic.Int64
}

func (t *stubTrigger) RunOnce()           { t.runs.Add(1) }
func (t *stubTrigger) SkippedRuns() int64 { return 0 }

func newTestServer(t *testing.T, store *stubStore, trigger *stubTrigger) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewServer(store, trigger, nil))
	t.Cleanup(server.Close)
	return server
}

func TestTrendingQuestionsFilters(t *testing.T) {
	store := &stubStore{
		questions: []domain.TrendingQuestion{{
			ID:       "q1",
			Content:  "How would you adopt this?",
			Position: domain.PositionBackend,
			Category: domain.CategoryAI,
		}},
	}
	server := newTestServer(t, store, &stubTrigger{})

	resp, err := http.Get(server.URL + "/api/trending-questions?category=ai&position=backend&limit=5&days_back=7")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Count     int `json:"count"`
		Questions []struct {
			ID string `json:"id"`
		} `json:"questions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || body.Questions[0].ID != "q1" {
		t.Fatalf("unexpected body %+v", body)
	}

	want := ports.QuestionQuery{Category: domain.CategoryAI, Position: domain.PositionBackend, Limit: 5, DaysBack: 7}
	if store.lastQuery != want {
		t.Fatalf("query not forwarded, got %+v", store.lastQuery)
	}
}

func TestTrendingQuestionsRejectsBadLimit(t *testing.T) {
	server := newTestServer(t, &stubStore{}, &stubTrigger{})

	resp, err := http.Get(server.URL + "/api/trending-questions?limit=abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestNewsSourcesOmitsZeroLastFetched(t *testing.T) {
	store := &stubStore{
		sources: []domain.Source{
			{ID: 1, Name: "dev.to", Category: domain.CategoryWebDev, Kind: domain.KindFeed, Active: true},
			{ID: 2, Name: "hn", Category: domain.CategoryGeneralTech, Kind: domain.KindAPI, Active: true,
				LastFetched: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)},
		},
	}
	server := newTestServer(t, store, &stubTrigger{})

	resp, err := http.Get(server.URL + "/api/news-sources")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var out []struct {
		Name        string     `json:"name"`
		LastFetched *time.Time `json:"last_fetched"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(out))
	}
	if out[0].LastFetched != nil {
		t.Fatal("never-fetched source must report null")
	}
	if out[1].LastFetched == nil {
		t.Fatal("fetched source must carry a timestamp")
	}
}

func TestFetchNewsTriggersCycle(t *testing.T) {
	trigger := &stubTrigger{}
	server := newTestServer(t, &stubStore{}, trigger)

	resp, err := http.Post(server.URL+"/api/fetch-news", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(time.Second)
	for trigger.runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("cycle was not triggered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	store := &stubStore{}
	server := newTestServer(t, store, &stubTrigger{})

	body := `{"preferred_position":"devops","difficulty_level":"hard","daily_question_goal":3}`
	req, err := http.NewRequest(http.MethodPut, server.URL+"/api/users/7/preferences", strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	getResp, err := http.Get(server.URL + "/api/users/7/preferences")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer getResp.Body.Close()

	var prefs struct {
		UserID            int64  `json:"user_id"`
		PreferredPosition string `json:"preferred_position"`
		DailyQuestionGoal int    `json:"daily_question_goal"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&prefs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if prefs.UserID != 7 || prefs.PreferredPosition != "devops" || prefs.DailyQuestionGoal != 3 {
		t.Fatalf("unexpected preferences %+v", prefs)
	}
}
