// Package session holds the operator's durable client-side state: the
// bearer token, the signed-in email, and the pending invitation and OAuth
// registration handed between redirects.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/kv"
	"github.com/lalithlochan/sentinel/internal/metrics"
)

const (
	KeyToken                    = "token"
	KeyUserEmail                = "user_email"
	KeyPendingInvitation        = "pending_invitation_token"
	KeyPendingOAuthRegistration = "pending_oauth_registration"

	oauthStatePrefix = "oauth_state_"

	// LoginRoute is where the operator is sent when the session ends.
	LoginRoute = "/login"
)

// OAuthStateKey is the durable key holding the CSRF state for provider.
func OAuthStateKey(provider string) string {
	return oauthStatePrefix + provider
}

// Session is safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	state   kv.Store
	secrets kv.Store
	logger  *zap.Logger

	token string
	gen   uint64
	email string

	onExpire func()
}

// Option configures a Session.
type Option func(*Session)

// WithExpireHook runs fn once each time a token is expired by the server.
func WithExpireHook(fn func()) Option {
	return func(s *Session) { s.onExpire = fn }
}

// Open loads the session. secrets holds the bearer token; it may be the same
// store as state.
func Open(ctx context.Context, state, secrets kv.Store, logger *zap.Logger, opts ...Option) (*Session, error) {
	s := &Session{
		state:   state,
		secrets: secrets,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	token, _, err := kv.GetString(ctx, secrets, KeyToken)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	email, _, err := kv.GetString(ctx, state, KeyUserEmail)
	if err != nil {
		return nil, fmt.Errorf("load user email: %w", err)
	}

	s.token = token
	s.email = email
	s.gen = 1

	logger.Info("session loaded",
		zap.Bool("authenticated", token != ""),
		zap.String("email", email),
	)
	return s, nil
}

// State is the plain durable store, shared with the OAuth flow.
func (s *Session) State() kv.Store {
	return s.state
}

// Token returns the bearer token and its generation. The generation is
// handed back to Expire so that one dead token ends the session once.
func (s *Session) Token() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.gen
}

func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// SignIn stores a freshly issued token.
func (s *Session) SignIn(ctx context.Context, token, email string) error {
	if token == "" {
		return errors.New("empty token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.secrets.Set(ctx, KeyToken, []byte(token)); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if email != "" {
		if err := s.state.Set(ctx, KeyUserEmail, []byte(email)); err != nil {
			return fmt.Errorf("store user email: %w", err)
		}
		s.email = email
	}
	s.token = token
	s.gen++
	return nil
}

// Logout erases the token and email.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.email = ""
	s.gen++

	if err := s.secrets.Delete(ctx, KeyToken); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if err := s.state.Delete(ctx, KeyUserEmail); err != nil {
		return fmt.Errorf("delete user email: %w", err)
	}
	return nil
}

// Expire ends the session after the server rejected the token of generation
// gen. Only the first call for a generation has any effect; it reports
// whether this call was the one.
func (s *Session) Expire(gen uint64) bool {
	s.mu.Lock()
	if gen != s.gen || s.token == "" {
		s.mu.Unlock()
		return false
	}
	s.token = ""
	s.gen++
	hook := s.onExpire
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.secrets.Delete(ctx, KeyToken); err != nil {
		s.logger.Warn("failed to erase expired token", zap.Error(err))
	}

	metrics.RecordUnauthorizedLogout()
	s.logger.Info("session expired, redirecting to login", zap.String("route", LoginRoute))
	if hook != nil {
		hook()
	}
	return true
}

// TokenExpired reports whether the token's exp claim is in the past. The
// signature is not checked; opaque tokens and tokens without exp count as
// live.
func (s *Session) TokenExpired(now time.Time) bool {
	token, _ := s.Token()
	exp, ok := expiresAt(token)
	return ok && !now.Before(exp)
}

// ExpiresAt is the exp claim of the current token, if it has one.
func (s *Session) ExpiresAt() (time.Time, bool) {
	token, _ := s.Token()
	return expiresAt(token)
}

func expiresAt(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// SetPendingInvitation keeps an invitation token across the login redirect.
func (s *Session) SetPendingInvitation(ctx context.Context, token string) error {
	return s.state.Set(ctx, KeyPendingInvitation, []byte(token))
}

// TakePendingInvitation returns and clears the pending invitation token.
func (s *Session) TakePendingInvitation(ctx context.Context) (string, bool, error) {
	token, ok, err := kv.GetString(ctx, s.state, KeyPendingInvitation)
	if err != nil || !ok {
		return "", false, err
	}
	if err := s.state.Delete(ctx, KeyPendingInvitation); err != nil {
		return "", false, fmt.Errorf("clear pending invitation: %w", err)
	}
	return token, true, nil
}

// SetPendingOAuthRegistration stores the payload of a registration that is
// waiting on an OAuth round trip.
func (s *Session) SetPendingOAuthRegistration(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode pending registration: %w", err)
	}
	return s.state.Set(ctx, KeyPendingOAuthRegistration, data)
}

// TakePendingOAuthRegistration decodes the pending payload into dst and
// clears it. A corrupt payload is dropped and reported as absent.
func (s *Session) TakePendingOAuthRegistration(ctx context.Context, dst any) (bool, error) {
	data, err := s.state.Get(ctx, KeyPendingOAuthRegistration)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load pending registration: %w", err)
	}
	if err := s.state.Delete(ctx, KeyPendingOAuthRegistration); err != nil {
		return false, fmt.Errorf("clear pending registration: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("discarding corrupt pending registration", zap.Error(err))
		return false, nil
	}
	return true, nil
}
