// Package api exposes the trending-question pipeline over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"MockMate/internal/domain"
	"MockMate/internal/ports"
)

// CycleTrigger starts an ingestion cycle outside the schedule. The call
// returns immediately; the cycle runs in the background.
type CycleTrigger interface {
	RunOnce()
	SkippedRuns() int64
}

// Server routes pipeline queries and the manual fetch trigger.
type Server struct {
	store   ports.QuestionStore
	trigger CycleTrigger
	logger  *slog.Logger
	router  chi.Router
}

// NewServer wires the handlers.
func NewServer(store ports.QuestionStore, trigger CycleTrigger, log *slog.Logger) *Server {
	s := &Server{
		store:   store,
		trigger: trigger,
		logger:  log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/trending-questions", s.handleTrendingQuestions)
		r.Get("/news-sources", s.handleNewsSources)
		r.Post("/fetch-news", s.handleFetchNews)
		r.Get("/users/{userID}/preferences", s.handleGetPreferences)
		r.Put("/users/{userID}/preferences", s.handlePutPreferences)
	})

	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type questionOut struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	Position     string    `json:"position"`
	Category     string    `json:"category"`
	Difficulty   string    `json:"difficulty"`
	QuestionType string    `json:"question_type"`
	Relevance    float64   `json:"relevance_score"`
	Rationale    string    `json:"rationale,omitempty"`
	SourceTitle  string    `json:"source_title"`
	SourceURL    string    `json:"source_url"`
	PublishedAt  time.Time `json:"published_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Server) handleTrendingQuestions(w http.ResponseWriter, r *http.Request) {
	query := ports.QuestionQuery{
		Category: domain.Category(r.URL.Query().Get("category")),
		Position: domain.Position(r.URL.Query().Get("position")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		query.Limit = n
	}
	if v := r.URL.Query().Get("days_back"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid days_back", http.StatusBadRequest)
			return
		}
		query.DaysBack = n
	}

	questions, err := s.store.TrendingQuestions(r.Context(), query)
	if err != nil {
		s.logError("query trending questions", err)
		http.Error(w, "failed to load questions", http.StatusInternalServerError)
		return
	}

	out := make([]questionOut, 0, len(questions))
	for _, q := range questions {
		out = append(out, questionOut{
			ID:           q.ID,
			Content:      q.Content,
			Position:     string(q.Position),
			Category:     string(q.Category),
			Difficulty:   string(q.Difficulty),
			QuestionType: string(q.Type),
			Relevance:    q.Relevance,
			Rationale:    q.Rationale,
			SourceTitle:  q.SourceTitle,
			SourceURL:    q.SourceURL,
			PublishedAt:  q.PublishedAt,
			CreatedAt:    q.CreatedAt,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"questions": out, "count": len(out)})
}

type sourceOut struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Kind        string     `json:"kind"`
	URL         string     `json:"url"`
	Active      bool       `json:"active"`
	LastFetched *time.Time `json:"last_fetched"`
}

func (s *Server) handleNewsSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.ListSources(r.Context())
	if err != nil {
		s.logError("list sources", err)
		http.Error(w, "failed to load sources", http.StatusInternalServerError)
		return
	}

	out := make([]sourceOut, 0, len(sources))
	for _, src := range sources {
		entry := sourceOut{
			ID:       src.ID,
			Name:     src.Name,
			Category: string(src.Category),
			Kind:     string(src.Kind),
			URL:      src.URL,
			Active:   src.Active,
		}
		if !src.LastFetched.IsZero() {
			t := src.LastFetched
			entry.LastFetched = &t
		}
		out = append(out, entry)
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFetchNews(w http.ResponseWriter, r *http.Request) {
	go s.trigger.RunOnce()

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "started",
		"skipped_runs": s.trigger.SkippedRuns(),
	})
}

type preferencesOut struct {
	UserID            int64  `json:"user_id"`
	PreferredPosition string `json:"preferred_position"`
	DifficultyLevel   string `json:"difficulty_level"`
	DailyQuestionGoal int    `json:"daily_question_goal"`
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	prefs, err := s.store.UserPreferences(r.Context(), userID)
	if err != nil {
		s.logError("load preferences", err)
		http.Error(w, "failed to load preferences", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, preferencesOut{
		UserID:            prefs.UserID,
		PreferredPosition: string(prefs.PreferredPosition),
		DifficultyLevel:   string(prefs.DifficultyLevel),
		DailyQuestionGoal: prefs.DailyQuestionGoal,
	})
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var in preferencesOut
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	prefs := domain.UserPreferences{
		UserID:            userID,
		PreferredPosition: domain.Position(in.PreferredPosition),
		DifficultyLevel:   domain.Difficulty(in.DifficultyLevel),
		DailyQuestionGoal: in.DailyQuestionGoal,
	}
	if err := s.store.SaveUserPreferences(r.Context(), prefs); err != nil {
		s.logError("save preferences", err)
		http.Error(w, "failed to save preferences", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logError("encode response", err)
	}
}

func (s *Server) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "error", err)
	}
}
