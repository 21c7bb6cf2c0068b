// Package oauth drives the authorize redirect for third-party integrations
// and guards the callback with a persisted CSRF state.
package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/lalithlochan/sentinel/internal/config"
	"github.com/lalithlochan/sentinel/internal/kv"
	"github.com/lalithlochan/sentinel/internal/metrics"
	"github.com/lalithlochan/sentinel/internal/services"
	"github.com/lalithlochan/sentinel/internal/session"
)

var (
	// ErrStateMismatch means the callback's state does not match the one
	// persisted when the redirect started. No exchange is attempted.
	ErrStateMismatch   = errors.New("oauth state mismatch")
	ErrUnknownProvider = errors.New("unknown oauth provider")
	ErrMissingCode     = errors.New("oauth callback without code")
	// ErrAuthorize wraps a failed platform authorize request.
	ErrAuthorize = errors.New("platform authorize request failed")
	// ErrUntrustedAuthURL means the platform answered with an authorize URL
	// outside the provider's catalogue origin.
	ErrUntrustedAuthURL = errors.New("authorize url outside provider origin")
)

// Exchanger hands the authorization code to the platform, which holds the
// client secret.
type Exchanger interface {
	ExchangeCode(ctx context.Context, provider, code, redirectURI string) (*services.Integration, error)
}

// Authorizer asks the platform for a ready-made authorize URL and state.
type Authorizer interface {
	ConnectURL(ctx context.Context, provider, redirectURI string) (*services.ConnectURL, error)
}

type provider struct {
	oauth    *oauth2.Config
	origin   *url.URL
	platform bool
}

type Flow struct {
	providers  map[string]provider
	publicURL  string
	state      kv.Store
	exchanger  Exchanger
	authorizer Authorizer
	logger     *zap.Logger
}

type Option func(*Flow)

// WithAuthorizer lets providers marked platform_authorize obtain their
// authorize URL and state from the platform.
func WithAuthorizer(a Authorizer) Option {
	return func(f *Flow) { f.authorizer = a }
}

// NewFlow builds one oauth2 config per catalogue entry. Callbacks land on
// publicURL + /v1/oauth/{provider}/callback.
func NewFlow(providers []config.Provider, publicURL string, state kv.Store, exchanger Exchanger, logger *zap.Logger, opts ...Option) *Flow {
	f := &Flow{
		providers: make(map[string]provider, len(providers)),
		publicURL: strings.TrimRight(publicURL, "/"),
		state:     state,
		exchanger: exchanger,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	for _, p := range providers {
		origin, err := url.Parse(p.AuthURL)
		if err != nil {
			logger.Warn("provider auth_url does not parse", zap.String("provider", p.Name), zap.Error(err))
			origin = &url.URL{}
		}
		f.providers[p.Name] = provider{
			oauth: &oauth2.Config{
				ClientID: p.ClientID,
				Endpoint: oauth2.Endpoint{
					AuthURL:  p.AuthURL,
					TokenURL: p.TokenURL,
				},
				RedirectURL: f.RedirectURI(p.Name),
				Scopes:      p.Scopes,
			},
			origin:   origin,
			platform: p.PlatformAuthorize && f.authorizer != nil,
		}
	}
	return f
}

// RedirectURI is where provider sends the browser back to.
func (f *Flow) RedirectURI(provider string) string {
	return f.publicURL + "/v1/oauth/" + url.PathEscape(provider) + "/callback"
}

// Has reports whether provider is in the catalogue.
func (f *Flow) Has(provider string) bool {
	_, ok := f.providers[provider]
	return ok
}

// Begin persists a state and returns the provider's authorize URL. The state
// is generated here, or issued by the platform for providers marked
// platform_authorize; it never comes from the browser.
func (f *Flow) Begin(ctx context.Context, name string) (string, error) {
	p, ok := f.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	var authURL, state string
	if p.platform {
		issued, err := f.authorizer.ConnectURL(ctx, name, f.RedirectURI(name))
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrAuthorize, err)
		}
		if issued.State == "" {
			return "", fmt.Errorf("%w: empty state", ErrAuthorize)
		}
		if !sameOrigin(p.origin, issued.AuthURL) {
			f.logger.Warn("platform authorize url rejected",
				zap.String("provider", name),
				zap.String("auth_url", issued.AuthURL),
			)
			return "", ErrUntrustedAuthURL
		}
		authURL, state = issued.AuthURL, issued.State
	} else {
		state = uuid.NewString()
		authURL = p.oauth.AuthCodeURL(state)
	}

	if err := f.state.Set(ctx, session.OAuthStateKey(name), []byte(state)); err != nil {
		return "", fmt.Errorf("persist oauth state: %w", err)
	}

	f.logger.Info("oauth redirect started",
		zap.String("provider", name),
		zap.Bool("platform_issued", p.platform),
	)
	return authURL, nil
}

func sameOrigin(want *url.URL, raw string) bool {
	got, err := url.Parse(raw)
	if err != nil || want.Host == "" {
		return false
	}
	return strings.EqualFold(got.Scheme, want.Scheme) && strings.EqualFold(got.Host, want.Host)
}

// Complete validates the round-tripped state and, only when it matches,
// exchanges the code. The persisted state is erased whatever the outcome.
func (f *Flow) Complete(ctx context.Context, provider, code, state string) (*services.Integration, error) {
	if !f.Has(provider) {
		metrics.RecordOAuthCallback(provider, "unknown_provider")
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	key := session.OAuthStateKey(provider)
	stored, found, err := kv.GetString(ctx, f.state, key)
	if delErr := f.state.Delete(context.WithoutCancel(ctx), key); delErr != nil {
		f.logger.Warn("failed to clear oauth state",
			zap.String("provider", provider),
			zap.Error(delErr),
		)
	}
	if err != nil {
		metrics.RecordOAuthCallback(provider, "error")
		return nil, fmt.Errorf("load oauth state: %w", err)
	}

	if !found || state == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(state)) != 1 {
		metrics.RecordOAuthCallback(provider, "state_mismatch")
		f.logger.Warn("oauth callback rejected, state mismatch",
			zap.String("provider", provider),
			zap.Bool("state_persisted", found),
		)
		return nil, ErrStateMismatch
	}

	if code == "" {
		metrics.RecordOAuthCallback(provider, "missing_code")
		return nil, ErrMissingCode
	}

	integration, err := f.exchanger.ExchangeCode(ctx, provider, code, f.RedirectURI(provider))
	if err != nil {
		metrics.RecordOAuthCallback(provider, "exchange_failed")
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	metrics.RecordOAuthCallback(provider, "ok")
	f.logger.Info("integration connected",
		zap.String("provider", provider),
		zap.String("integration_id", integration.ID),
	)
	return integration, nil
}
