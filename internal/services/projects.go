package services

import (
	"context"
	"net/url"
	"time"

	"github.com/lalithlochan/sentinel/internal/apiclient"
)

type ProjectService struct {
	c *apiclient.Client
}

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	RiskScore   float64   `json:"risk_score"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}

type Scan struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Status      string     `json:"status"`
	Target      string     `json:"target"`
	Findings    int        `json:"findings_count"`
	Severity    string     `json:"max_severity,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (s *ProjectService) List(ctx context.Context, page Page) ([]Project, error) {
	var out []Project
	if err := s.c.Get(ctx, "/projects", page.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ProjectService) Get(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := s.c.Get(ctx, "/projects/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProjectService) Create(ctx context.Context, in ProjectInput) (*Project, error) {
	var p Project
	if err := s.c.Post(ctx, "/projects", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProjectService) Update(ctx context.Context, id string, in ProjectInput) (*Project, error) {
	var p Project
	if err := s.c.Put(ctx, "/projects/"+url.PathEscape(id), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProjectService) Delete(ctx context.Context, id string) error {
	return s.c.Delete(ctx, "/projects/"+url.PathEscape(id))
}

// StartScan queues a scan of the project's artifacts.
func (s *ProjectService) StartScan(ctx context.Context, projectID string) (*Scan, error) {
	var scan Scan
	if err := s.c.Post(ctx, "/projects/"+url.PathEscape(projectID)+"/scans", nil, &scan); err != nil {
		return nil, err
	}
	return &scan, nil
}

// RecentScans lists the newest scans across every project.
func (s *ProjectService) RecentScans(ctx context.Context, limit int) ([]Scan, error) {
	var out []Scan
	if err := s.c.Get(ctx, "/scans", Page{Limit: limit}.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}
