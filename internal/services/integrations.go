package services

import (
	"context"
	"net/url"
	"time"

	"github.com/lalithlochan/sentinel/internal/apiclient"
)

type IntegrationService struct {
	c *apiclient.Client
}

type Integration struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	DisplayName string    `json:"display_name,omitempty"`
	Status      string    `json:"status"`
	AccountName string    `json:"account_name,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// ConnectURL is the backend's answer when it drives the OAuth dance itself.
type ConnectURL struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// Repository is a discoverable source (repo, model, registry image).
type Repository struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name,omitempty"`
	URL      string `json:"url,omitempty"`
	Private  bool   `json:"private"`
}

func integrationPath(provider string) string {
	return "/integrations/" + url.PathEscape(provider)
}

func (s *IntegrationService) List(ctx context.Context) ([]Integration, error) {
	var out []Integration
	if err := s.c.Get(ctx, "/integrations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConnectURL asks the backend for a provider authorize URL and its state.
func (s *IntegrationService) ConnectURL(ctx context.Context, provider, redirectURI string) (*ConnectURL, error) {
	var out ConnectURL
	q := url.Values{"redirect_uri": {redirectURI}}
	if err := s.c.Get(ctx, integrationPath(provider)+"/authorize", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExchangeCode hands the OAuth code to the backend, which owns the client
// secret and stores the resulting provider token.
func (s *IntegrationService) ExchangeCode(ctx context.Context, provider, code, redirectURI string) (*Integration, error) {
	var out Integration
	body := map[string]string{"code": code, "redirect_uri": redirectURI}
	if err := s.c.Post(ctx, integrationPath(provider)+"/callback", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConnectWithCredentials registers a credential-based integration such as
// Jenkins, SageMaker or a container registry.
func (s *IntegrationService) ConnectWithCredentials(ctx context.Context, provider string, credentials map[string]string) (*Integration, error) {
	var out Integration
	if err := s.c.Post(ctx, integrationPath(provider)+"/connect", credentials, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Discover lists what the connected provider exposes for scanning.
func (s *IntegrationService) Discover(ctx context.Context, provider string) ([]Repository, error) {
	var out []Repository
	if err := s.c.Get(ctx, integrationPath(provider)+"/repositories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *IntegrationService) Disconnect(ctx context.Context, integrationID string) error {
	return s.c.Delete(ctx, "/integrations/"+url.PathEscape(integrationID))
}
