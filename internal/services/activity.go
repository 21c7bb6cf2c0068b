package services

import (
	"context"
	"time"

	"github.com/lalithlochan/sentinel/internal/apiclient"
)

type ActivityService struct {
	c *apiclient.Client
}

// Activity is one entry of the server-side recent activity feed.
type Activity struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // scan, project, report, integration, incident, ...
	ResourceID  string    `json:"resource_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Severity    string    `json:"severity,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func (s *ActivityService) Recent(ctx context.Context, limit int) ([]Activity, error) {
	var out []Activity
	if err := s.c.Get(ctx, "/activity/recent", Page{Limit: limit}.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}
