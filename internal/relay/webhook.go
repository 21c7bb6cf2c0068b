package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/notify"
)

// WebhookSink posts a Slack-compatible incoming-webhook payload.
type WebhookSink struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

type WebhookConfig struct {
	URL     string
	Timeout time.Duration // default 10s
}

// webhookPayload is understood by Slack and by Mattermost/Teams bridges
// that accept the same shape.
type webhookPayload struct {
	Text        string              `json:"text"`
	Attachments []webhookAttachment `json:"attachments,omitempty"`
}

type webhookAttachment struct {
	Color     string `json:"color,omitempty"`
	Title     string `json:"title"`
	TitleLink string `json:"title_link,omitempty"`
	Text      string `json:"text"`
	Footer    string `json:"footer,omitempty"`
	Timestamp int64  `json:"ts"`
}

func NewWebhookSink(cfg WebhookConfig, logger *zap.Logger) *WebhookSink {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, n notify.Notification) error {
	body, err := json.Marshal(webhookPayload{
		Text: fmt.Sprintf("%s %s", kindEmoji(n.Kind), n.Title),
		Attachments: []webhookAttachment{{
			Color:     kindColor(n.Kind),
			Title:     n.Title,
			TitleLink: n.Link,
			Text:      n.Message,
			Footer:    "Sentinel",
			Timestamp: n.CreatedAt.Unix(),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SentinelConsole/1.0")
	req.Header.Set("X-Sentinel-Notification-ID", n.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d, body: %s", resp.StatusCode, string(preview))
	}

	s.logger.Debug("webhook delivered",
		zap.String("notification_id", n.ID),
		zap.Int("status_code", resp.StatusCode),
	)
	return nil
}

func kindColor(k notify.Kind) string {
	switch k {
	case notify.KindError:
		return "danger"
	case notify.KindWarning:
		return "warning"
	case notify.KindSuccess:
		return "good"
	default:
		return "#439FE0"
	}
}

func kindEmoji(k notify.Kind) string {
	switch k {
	case notify.KindError:
		return ":red_circle:"
	case notify.KindWarning:
		return ":warning:"
	case notify.KindSuccess:
		return ":white_check_mark:"
	default:
		return ":information_source:"
	}
}
