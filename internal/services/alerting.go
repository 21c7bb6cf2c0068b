package services

import (
	"context"

	"github.com/lalithlochan/sentinel/internal/apiclient"
)

// AlertingService manages where the platform sends alerts: email, Slack
// and PagerDuty.
type AlertingService struct {
	c *apiclient.Client
}

type NotificationSettings struct {
	EmailEnabled     bool     `json:"email_enabled"`
	EmailRecipients  []string `json:"email_recipients"`
	MinSeverity      string   `json:"min_severity"`
	NotifyOnScanDone bool     `json:"notify_on_scan_complete"`
	NotifyOnPolicy   bool     `json:"notify_on_policy_violation"`
	SlackEnabled     bool     `json:"slack_enabled"`
	PagerDutyEnabled bool     `json:"pagerduty_enabled"`
}

type SlackConfig struct {
	WebhookURL string `json:"webhook_url"`
	Channel    string `json:"channel,omitempty"`
}

type PagerDutyConfig struct {
	RoutingKey string `json:"routing_key"`
	Severity   string `json:"severity,omitempty"`
}

func (s *AlertingService) Settings(ctx context.Context) (*NotificationSettings, error) {
	var out NotificationSettings
	if err := s.c.Get(ctx, "/notifications/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AlertingService) UpdateSettings(ctx context.Context, in NotificationSettings) (*NotificationSettings, error) {
	var out NotificationSettings
	if err := s.c.Put(ctx, "/notifications/settings", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AlertingService) ConfigureSlack(ctx context.Context, cfg SlackConfig) error {
	return s.c.Post(ctx, "/notifications/slack", cfg, nil)
}

func (s *AlertingService) ConfigurePagerDuty(ctx context.Context, cfg PagerDutyConfig) error {
	return s.c.Post(ctx, "/notifications/pagerduty", cfg, nil)
}

// SendTest asks the platform to fire a test alert on channel.
func (s *AlertingService) SendTest(ctx context.Context, channel string) error {
	return s.c.Post(ctx, "/notifications/test", map[string]string{"channel": channel}, nil)
}
