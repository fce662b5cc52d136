// Package llm talks to an OpenAI-compatible chat-completions API to generate
// interview questions from news items and to evaluate candidate answers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"MockMate/internal/config"
	"MockMate/internal/domain"
	"MockMate/internal/ports"
)

// Client implements ports.QuestionGenerator and ports.AnswerEvaluator.
type Client struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.QuestionGenerator = (*Client)(nil)
var _ ports.AnswerEvaluator = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.OpenAIConfig) *Client {
	return &Client{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

var categoryContext = map[domain.Category]string{
	domain.CategoryAI:          "artificial intelligence, machine learning, or AI technology",
	domain.CategoryWebDev:      "web development, frontend/backend technologies, or web frameworks",
	domain.CategoryMobile:      "mobile app development, React Native, Flutter, or mobile technologies",
	domain.CategoryDevOps:      "DevOps, cloud infrastructure, containers, or deployment technologies",
	domain.CategoryGeneralTech: "technology or software development",
}

// GenerateQuestion asks the model for one interview question derived from the
// news item, targeted at the given position.
func (c *Client) GenerateQuestion(ctx context.Context, item domain.NewsItem, position domain.Position) (ports.Generation, error) {
	if c == nil || c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return ports.Generation{}, fmt.Errorf("llm client misconfigured")
	}

	topic, ok := categoryContext[item.Category]
	if !ok {
		topic = categoryContext[domain.CategoryGeneralTech]
	}

	prompt := fmt.Sprintf(`Based on the following recent news about %s, generate a thoughtful interview question
for a %s developer position. The question should be relevant to current industry trends
and encourage the candidate to share their perspective or technical understanding.

News Title: %s
News Summary: %s

Generate a question that:
1. Is relevant to a %s developer role
2. Encourages critical thinking about current industry trends
3. Can be answered based on the candidate's experience and opinion
4. Is professional and appropriate for an interview setting

Also provide a brief reasoning (1-2 sentences) for why this question is relevant,
and your confidence in the question's quality as a number between 0 and 1.

Format your response as:
QUESTION: [your question here]
REASONING: [your reasoning here]
CONFIDENCE: [0-1]`, topic, position, item.Title, item.Summary, position)

	content, err := c.chatCompletion(ctx, prompt)
	if err != nil {
		return ports.Generation{}, err
	}

	gen := parseGeneration(content)
	if gen.Content == "" {
		return ports.Generation{}, fmt.Errorf("malformed generation response: %q", truncate(content, 120))
	}

	return gen, nil
}

// EvaluateAnswer asks the model to score a candidate answer on a 0-100 scale.
func (c *Client) EvaluateAnswer(ctx context.Context, question, answer string) (ports.Evaluation, error) {
	if c == nil || c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return ports.Evaluation{}, fmt.Errorf("llm client misconfigured")
	}

	prompt := fmt.Sprintf(`Evaluate the following interview answer on a scale of 0 to 100, considering
technical accuracy, depth, and communication clarity. Provide short actionable feedback.

Question: %s
Answer: %s

Format your response as:
SCORE: [0-100]
FEEDBACK: [your feedback here]`, question, answer)

	content, err := c.chatCompletion(ctx, prompt)
	if err != nil {
		return ports.Evaluation{}, err
	}

	eval, ok := parseEvaluation(content)
	if !ok {
		return ports.Evaluation{}, fmt.Errorf("malformed evaluation response: %q", truncate(content, 120))
	}

	return eval, nil
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) chatCompletion(ctx context.Context, userPrompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": c.systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"max_tokens":  300,
		"temperature": 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ports.TransientError{Err: fmt.Errorf("chat completion: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &ports.TransientError{Err: fmt.Errorf("chat completion %s: %s", resp.Status, strings.TrimSpace(string(payload)))}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat completion %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func parseGeneration(content string) ports.Generation {
	gen := ports.Generation{Confidence: 0.5}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "QUESTION:"):
			gen.Content = strings.TrimSpace(strings.TrimPrefix(line, "QUESTION:"))
		case strings.HasPrefix(line, "REASONING:"):
			gen.Rationale = strings.TrimSpace(strings.TrimPrefix(line, "REASONING:"))
		case strings.HasPrefix(line, "CONFIDENCE:"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:"))
			if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 1 {
				gen.Confidence = v
			}
		}
	}

	if gen.Content == "" && strings.Contains(content, "QUESTION:") {
		// Model answered in one block; split on markers instead of lines.
		rest := content[strings.Index(content, "QUESTION:")+len("QUESTION:"):]
		if idx := strings.Index(rest, "REASONING:"); idx >= 0 {
			gen.Content = strings.TrimSpace(rest[:idx])
			gen.Rationale = strings.TrimSpace(rest[idx+len("REASONING:"):])
			if cIdx := strings.Index(gen.Rationale, "CONFIDENCE:"); cIdx >= 0 {
				gen.Rationale = strings.TrimSpace(gen.Rationale[:cIdx])
			}
		} else {
			gen.Content = strings.TrimSpace(rest)
		}
	}

	return gen
}

func parseEvaluation(content string) (ports.Evaluation, bool) {
	var eval ports.Evaluation
	found := false

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SCORE:"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "SCORE:"))
			if v, err := strconv.Atoi(raw); err == nil && v >= 0 && v <= 100 {
				eval.Score = v
				found = true
			}
		case strings.HasPrefix(line, "FEEDBACK:"):
			eval.Feedback = strings.TrimSpace(strings.TrimPrefix(line, "FEEDBACK:"))
		}
	}

	return eval, found
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
