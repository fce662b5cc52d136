package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"MockMate/internal/config"
	"MockMate/internal/domain"
	"MockMate/internal/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()

	server := httptest.NewServer(handler)
	client := NewClient(config.OpenAIConfig{
		Endpoint:     server.URL,
		Model:        "test-model",
		APIKey:       "sk-test",
		SystemPrompt: "test prompt",
	})
	client.httpClient = server.Client()
	return client, server.Close
}

func completionWith(t *testing.T, content string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing auth header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	}
}

func TestGenerateQuestion(t *testing.T) {
	client, closeFn := newTestClient(t, completionWith(t, `QUESTION: How would you ship an LLM agent safely?
REASONING: Agents are the current industry focus.
CONFIDENCE: 0.8`))
	defer closeFn()

	item := domain.NewsItem{Title: "LLM agents", Summary: "agents everywhere", Category: domain.CategoryAI}
	gen, err := client.GenerateQuestion(context.Background(), item, domain.PositionBackend)
	if err != nil {
		t.Fatalf("GenerateQuestion error: %v", err)
	}

	if gen.Content != "How would you ship an LLM agent safely?" {
		t.Fatalf("unexpected content: %q", gen.Content)
	}
	if gen.Rationale != "Agents are the current industry focus." {
		t.Fatalf("unexpected rationale: %q", gen.Rationale)
	}
	if gen.Confidence != 0.8 {
		t.Fatalf("unexpected confidence: %v", gen.Confidence)
	}
}

func TestGenerateQuestionBlockFormat(t *testing.T) {
	client, closeFn := newTestClient(t, completionWith(t,
		"QUESTION: What changed? REASONING: because trends. CONFIDENCE: 0.7"))
	defer closeFn()

	gen, err := client.GenerateQuestion(context.Background(), domain.NewsItem{Title: "t", Category: domain.CategoryAI}, domain.PositionFrontend)
	if err != nil {
		t.Fatalf("GenerateQuestion error: %v", err)
	}
	if gen.Content != "What changed?" {
		t.Fatalf("unexpected content: %q", gen.Content)
	}
	if gen.Rationale != "because trends." {
		t.Fatalf("unexpected rationale: %q", gen.Rationale)
	}
}

func TestGenerateQuestionMalformed(t *testing.T) {
	client, closeFn := newTestClient(t, completionWith(t, "I cannot help with that."))
	defer closeFn()

	_, err := client.GenerateQuestion(context.Background(), domain.NewsItem{Title: "t"}, domain.PositionBackend)
	if err == nil {
		t.Fatal("expected error for malformed response")
	}
	if ports.IsTransient(err) {
		t.Fatal("malformed output must not be retried")
	}
}

func TestGenerateQuestionRateLimitedIsTransient(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})
	defer closeFn()

	_, err := client.GenerateQuestion(context.Background(), domain.NewsItem{Title: "t"}, domain.PositionBackend)
	if err == nil {
		t.Fatal("expected error on 429")
	}
	if !ports.IsTransient(err) {
		t.Fatalf("429 should be transient, got %v", err)
	}
}

func TestGenerateQuestionBadRequestIsPermanent(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad prompt", http.StatusBadRequest)
	})
	defer closeFn()

	_, err := client.GenerateQuestion(context.Background(), domain.NewsItem{Title: "t"}, domain.PositionBackend)
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if ports.IsTransient(err) {
		t.Fatal("400 must not be transient")
	}
}

func TestEvaluateAnswer(t *testing.T) {
	client, closeFn := newTestClient(t, completionWith(t, `SCORE: 82
FEEDBACK: Solid reasoning, cover trade-offs next time.`))
	defer closeFn()

	eval, err := client.EvaluateAnswer(context.Background(), "Q?", "A.")
	if err != nil {
		t.Fatalf("EvaluateAnswer error: %v", err)
	}
	if eval.Score != 82 {
		t.Fatalf("unexpected score: %d", eval.Score)
	}
	if eval.Feedback != "Solid reasoning, cover trade-offs next time." {
		t.Fatalf("unexpected feedback: %q", eval.Feedback)
	}
}
