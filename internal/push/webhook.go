package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"MockMate/internal/domain"
	"MockMate/internal/ports"
)

// WebhookNotifier delivers notifications by posting the question to an
// HTTP endpoint, typically a companion app or chat integration.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

var _ ports.Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier registers the webhook endpoint.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Notify posts a JSON payload with the question to the webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, userID int64, question domain.TrendingQuestion) error {
	if n.url == "" || n.client == nil {
		return fmt.Errorf("webhook notifier misconfigured")
	}

	payload, err := json.Marshal(map[string]any{
		"user_id":     userID,
		"question_id": question.ID,
		"content":     question.Content,
		"position":    question.Position,
		"category":    question.Category,
		"source_url":  question.SourceURL,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return ports.ErrPermissionDenied
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("webhook error: %s", resp.Status)
	}

	return nil
}
