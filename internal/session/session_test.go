package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/kv"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator@example.com",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func openTestSession(t *testing.T, state, secrets kv.Store, opts ...Option) *Session {
	t.Helper()
	s, err := Open(context.Background(), state, secrets, zap.NewNop(), opts...)
	require.NoError(t, err)
	return s
}

func TestSession_SignInPersists(t *testing.T) {
	ctx := context.Background()
	state := kv.NewMemory()

	s := openTestSession(t, state, state)
	assert.False(t, s.Authenticated())

	require.NoError(t, s.SignIn(ctx, "tok-1", "ops@example.com"))
	assert.True(t, s.Authenticated())
	assert.Equal(t, "ops@example.com", s.Email())

	reopened := openTestSession(t, state, state)
	token, _ := reopened.Token()
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, "ops@example.com", reopened.Email())
}

func TestSession_SignInRejectsEmptyToken(t *testing.T) {
	s := openTestSession(t, kv.NewMemory(), kv.NewMemory())
	assert.Error(t, s.SignIn(context.Background(), "", "a@b.c"))
}

func TestSession_Logout(t *testing.T) {
	ctx := context.Background()
	state := kv.NewMemory()
	s := openTestSession(t, state, state)
	require.NoError(t, s.SignIn(ctx, "tok", "ops@example.com"))

	require.NoError(t, s.Logout(ctx))

	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Email())
	_, err := state.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, kv.ErrNotFound)
	_, err = state.Get(ctx, KeyUserEmail)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestSession_ExpireOncePerGeneration(t *testing.T) {
	ctx := context.Background()
	secrets := kv.NewMemory()

	var redirects atomic.Int32
	s := openTestSession(t, kv.NewMemory(), secrets, WithExpireHook(func() { redirects.Add(1) }))
	require.NoError(t, s.SignIn(ctx, "tok", ""))

	_, gen := s.Token()

	var wg sync.WaitGroup
	var winners atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Expire(gen) {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, int32(1), redirects.Load())
	assert.False(t, s.Authenticated())
	_, err := secrets.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestSession_StaleGenerationDoesNotExpireNewToken(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, kv.NewMemory(), kv.NewMemory())

	require.NoError(t, s.SignIn(ctx, "old", ""))
	_, oldGen := s.Token()
	require.NoError(t, s.SignIn(ctx, "new", ""))

	assert.False(t, s.Expire(oldGen), "a 401 for the previous token must not end the new session")
	token, _ := s.Token()
	assert.Equal(t, "new", token)
}

func TestSession_ExpireWithoutToken(t *testing.T) {
	s := openTestSession(t, kv.NewMemory(), kv.NewMemory())
	_, gen := s.Token()
	assert.False(t, s.Expire(gen))
}

func TestSession_TokenExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"live jwt", signedToken(t, now.Add(time.Hour)), false},
		{"expired jwt", signedToken(t, now.Add(-time.Minute)), true},
		{"opaque token", "not-a-jwt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestSession(t, kv.NewMemory(), kv.NewMemory())
			require.NoError(t, s.SignIn(ctx, tt.token, ""))
			assert.Equal(t, tt.want, s.TokenExpired(now))
		})
	}
}

func TestSession_PendingInvitation(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, kv.NewMemory(), kv.NewMemory())

	_, ok, err := s.TakePendingInvitation(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetPendingInvitation(ctx, "invite-123"))
	token, ok, err := s.TakePendingInvitation(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "invite-123", token)

	_, ok, err = s.TakePendingInvitation(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "invitation is consumed on take")
}

func TestSession_PendingOAuthRegistration(t *testing.T) {
	ctx := context.Background()
	state := kv.NewMemory()
	s := openTestSession(t, state, state)

	type registration struct {
		Provider string `json:"provider"`
		Email    string `json:"email"`
	}

	require.NoError(t, s.SetPendingOAuthRegistration(ctx, registration{Provider: "github", Email: "a@b.c"}))

	var got registration
	ok, err := s.TakePendingOAuthRegistration(ctx, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "github", got.Provider)

	require.NoError(t, state.Set(ctx, KeyPendingOAuthRegistration, []byte("{broken")))
	ok, err = s.TakePendingOAuthRegistration(ctx, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyringStore(t *testing.T) {
	ctx := context.Background()
	store := NewKeyringStore(keyring.NewArrayKeyring(nil))

	_, err := store.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Set(ctx, KeyToken, []byte("secret")))
	got, err := store.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), got)

	require.NoError(t, store.Delete(ctx, KeyToken))
	require.NoError(t, store.Delete(ctx, KeyToken), "deleting a missing credential is not an error")
}

func TestSession_TokenInKeyringEmailInState(t *testing.T) {
	ctx := context.Background()
	state := kv.NewMemory()
	secrets := NewKeyringStore(keyring.NewArrayKeyring(nil))

	s := openTestSession(t, state, secrets)
	require.NoError(t, s.SignIn(ctx, "tok", "ops@example.com"))

	_, err := state.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, kv.ErrNotFound, "token must not leak into plain state")

	got, err := secrets.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", string(got))
}

func TestOAuthStateKey(t *testing.T) {
	assert.Equal(t, "oauth_state_github", OAuthStateKey("github"))
}
