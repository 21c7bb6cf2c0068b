package services

import (
	"context"
	"net/url"

	"github.com/lalithlochan/sentinel/internal/apiclient"
)

type ScanPolicyService struct {
	c *apiclient.Client
}

type ScanPolicy struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Enabled     bool     `json:"enabled"`
	Severity    string   `json:"min_severity"`
	Rules       []string `json:"rules"`
	BlockOnFail bool     `json:"block_on_fail"`
}

func (s *ScanPolicyService) List(ctx context.Context) ([]ScanPolicy, error) {
	var out []ScanPolicy
	if err := s.c.Get(ctx, "/scan-policies", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ScanPolicyService) Create(ctx context.Context, p ScanPolicy) (*ScanPolicy, error) {
	var out ScanPolicy
	if err := s.c.Post(ctx, "/scan-policies", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ScanPolicyService) Update(ctx context.Context, p ScanPolicy) (*ScanPolicy, error) {
	var out ScanPolicy
	if err := s.c.Put(ctx, "/scan-policies/"+url.PathEscape(p.ID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ScanPolicyService) Delete(ctx context.Context, id string) error {
	return s.c.Delete(ctx, "/scan-policies/"+url.PathEscape(id))
}
