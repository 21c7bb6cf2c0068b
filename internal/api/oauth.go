package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/apiclient"
	"github.com/lalithlochan/sentinel/internal/oauth"
	"github.com/lalithlochan/sentinel/internal/session"
)

// IntegrationsRoute is the safe page callbacks land on.
const IntegrationsRoute = "/integrations"

// StartOAuth handles GET /v1/oauth/{provider}/start. Query parameters are
// ignored: the state and authorize URL come from the console or the platform.
func (h *Handler) StartOAuth(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if !h.oauth.Has(provider) {
		h.writeError(w, http.StatusNotFound, "unknown_provider", "Unknown integration provider", provider)
		return
	}

	target, err := h.oauth.Begin(r.Context(), provider)
	switch {
	case err == nil:
		http.Redirect(w, r, target, http.StatusFound)
	case errors.Is(err, oauth.ErrUntrustedAuthURL):
		h.writeError(w, http.StatusBadGateway, "untrusted_authorize_url",
			"Platform returned an authorize URL outside the provider", provider)
	case errors.Is(err, oauth.ErrAuthorize):
		h.writeUpstreamError(w, "Start authorization", err)
	default:
		h.logger.Error("failed to start oauth", zap.String("provider", provider), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "oauth_error", "Failed to start authorization", "")
	}
}

// OAuthCallback handles GET /v1/oauth/{provider}/callback and always ends
// in a redirect to a safe page.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	q := r.URL.Query()

	integration, err := h.oauth.Complete(r.Context(), provider, q.Get("code"), q.Get("state"))

	dest := url.Values{"provider": {provider}}
	switch {
	case err == nil:
		dest.Set("status", "connected")
		dest.Set("integration", integration.ID)
	case errors.Is(err, oauth.ErrUnknownProvider):
		h.writeError(w, http.StatusNotFound, "unknown_provider", "Unknown integration provider", provider)
		return
	case errors.Is(err, apiclient.ErrUnauthorized):
		http.Redirect(w, r, session.LoginRoute, http.StatusFound)
		return
	case errors.Is(err, oauth.ErrStateMismatch):
		dest.Set("status", "error")
		dest.Set("reason", "state_mismatch")
	case errors.Is(err, oauth.ErrMissingCode):
		dest.Set("status", "error")
		dest.Set("reason", "denied")
		if e := q.Get("error"); e != "" {
			dest.Set("reason", e)
		}
	default:
		dest.Set("status", "error")
		dest.Set("reason", "exchange_failed")
	}

	http.Redirect(w, r, IntegrationsRoute+"?"+dest.Encode(), http.StatusFound)
}
