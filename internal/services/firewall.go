package services

import (
	"context"
	"net/url"
	"time"

	"github.com/lalithlochan/sentinel/internal/apiclient"
)

// FirewallService fronts the prompt firewall: jailbreak and PII detection
// run on the platform, the console only submits and lists.
type FirewallService struct {
	c *apiclient.Client
}

type Analysis struct {
	Allowed    bool     `json:"allowed"`
	RiskScore  float64  `json:"risk_score"`
	Categories []string `json:"categories"`
	Redacted   string   `json:"redacted_prompt,omitempty"`
	IncidentID string   `json:"incident_id,omitempty"`
}

type FirewallStats struct {
	TotalRequests   int64            `json:"total_requests"`
	BlockedRequests int64            `json:"blocked_requests"`
	ByCategory      map[string]int64 `json:"by_category"`
}

type Incident struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Severity  string    `json:"severity"`
	Prompt    string    `json:"prompt_excerpt"`
	Blocked   bool      `json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *FirewallService) Analyze(ctx context.Context, prompt string) (*Analysis, error) {
	var out Analysis
	if err := s.c.Post(ctx, "/firewall/analyze", map[string]string{"prompt": prompt}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Test runs the prompt against the rules without recording an incident.
func (s *FirewallService) Test(ctx context.Context, prompt string) (*Analysis, error) {
	var out Analysis
	if err := s.c.Post(ctx, "/firewall/test", map[string]string{"prompt": prompt}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *FirewallService) Stats(ctx context.Context) (*FirewallStats, error) {
	var out FirewallStats
	if err := s.c.Get(ctx, "/firewall/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *FirewallService) Incidents(ctx context.Context, page Page) ([]Incident, error) {
	var out []Incident
	if err := s.c.Get(ctx, "/firewall/incidents", page.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FirewallService) Incident(ctx context.Context, id string) (*Incident, error) {
	var out Incident
	if err := s.c.Get(ctx, "/firewall/incidents/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
