package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/lalithlochan/sentinel/internal/apiclient"
)

type ReportService struct {
	c *apiclient.Client
}

// ReportType names a compliance framework the platform can report on.
type ReportType string

const (
	ReportEUAIAct   ReportType = "eu_ai_act"
	ReportNISTAIRMF ReportType = "nist_ai_rmf"
	ReportISO42001  ReportType = "iso_42001"
	ReportSOC2      ReportType = "soc2"
	ReportExecutive ReportType = "executive_summary"
	ReportSBOM      ReportType = "ml_bom"
)

type Report struct {
	ID         string     `json:"id"`
	Type       ReportType `json:"report_type"`
	Language   string     `json:"language"`
	ProjectID  string     `json:"project_id,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"completed_at,omitempty"`
}

type GenerateReportRequest struct {
	Type      ReportType `json:"report_type"`
	Language  string     `json:"language"`
	ProjectID string     `json:"project_id,omitempty"`
	Format    string     `json:"format,omitempty"`
}

func (s *ReportService) List(ctx context.Context) ([]Report, error) {
	var out []Report
	if err := s.c.Get(ctx, "/reports", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Generate queues a report. Language is a two-letter code; empty means
// English.
func (s *ReportService) Generate(ctx context.Context, req GenerateReportRequest) (*Report, error) {
	if req.Type == "" {
		return nil, fmt.Errorf("report type is required")
	}
	if req.Language == "" {
		req.Language = "en"
	}
	var out Report
	if err := s.c.Post(ctx, "/reports/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ReportService) Download(ctx context.Context, id string) (*apiclient.File, error) {
	file, err := s.c.Download(ctx, "/reports/"+url.PathEscape(id)+"/download", nil)
	if err != nil {
		return nil, err
	}
	if file.Name == "" {
		file.Name = "report-" + id + ".pdf"
	}
	return file, nil
}
