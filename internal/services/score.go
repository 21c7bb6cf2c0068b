package services

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/lalithlochan/sentinel/internal/apiclient"
)

type ScoreService struct {
	c *apiclient.Client
}

type SecurityScore struct {
	Score      float64            `json:"score"`
	Grade      string             `json:"grade"`
	Categories map[string]float64 `json:"categories,omitempty"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

type ScorePoint struct {
	Date  time.Time `json:"date"`
	Score float64   `json:"score"`
}

func (s *ScoreService) Current(ctx context.Context) (*SecurityScore, error) {
	var out SecurityScore
	if err := s.c.Get(ctx, "/security-score", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ScoreService) History(ctx context.Context, days int) ([]ScorePoint, error) {
	var out []ScorePoint
	q := url.Values{"days": {strconv.Itoa(days)}}
	if err := s.c.Get(ctx, "/security-score/history", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
