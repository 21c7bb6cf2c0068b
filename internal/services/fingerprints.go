package services

import (
	"context"
	"net/url"
	"time"

	"github.com/lalithlochan/sentinel/internal/apiclient"
)

type FingerprintService struct {
	c *apiclient.Client
}

type Fingerprint struct {
	ID        string    `json:"id"`
	ModelID   string    `json:"model_id"`
	ProjectID string    `json:"project_id"`
	Hash      string    `json:"fingerprint"`
	Algorithm string    `json:"algorithm"`
	CreatedAt time.Time `json:"created_at"`
}

type VerifyResult struct {
	Match      bool    `json:"match"`
	Similarity float64 `json:"similarity"`
	MatchedID  string  `json:"matched_fingerprint_id,omitempty"`
}

func (s *FingerprintService) List(ctx context.Context, projectID string) ([]Fingerprint, error) {
	var out []Fingerprint
	q := url.Values{}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	if err := s.c.Get(ctx, "/fingerprints", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FingerprintService) Generate(ctx context.Context, projectID, modelID string) (*Fingerprint, error) {
	var out Fingerprint
	body := map[string]string{"project_id": projectID, "model_id": modelID}
	if err := s.c.Post(ctx, "/fingerprints/generate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *FingerprintService) Verify(ctx context.Context, modelID string) (*VerifyResult, error) {
	var out VerifyResult
	if err := s.c.Post(ctx, "/fingerprints/verify", map[string]string{"model_id": modelID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
