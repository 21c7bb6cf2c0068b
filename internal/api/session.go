package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/notify"
)

type sessionView struct {
	Authenticated bool       `json:"authenticated"`
	Email         string     `json:"email,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) sessionView() sessionView {
	v := sessionView{
		Authenticated: h.session.Authenticated(),
		Email:         h.session.Email(),
	}
	if exp, ok := h.session.ExpiresAt(); ok {
		v.ExpiresAt = &exp
	}
	return v
}

// GetSession handles GET /v1/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessionView())
}

// Login handles POST /v1/session/login. A pending invitation saved before
// sign-in is accepted right after it.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "email and password are required")
		return
	}

	tok, err := h.services.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.writeUpstreamError(w, "Sign in", err)
		return
	}

	if err := h.session.SignIn(ctx, tok.AccessToken, req.Email); err != nil {
		h.logger.Error("failed to persist session", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "session_error", "Failed to store session", "")
		return
	}

	h.acceptPendingInvitation(r)

	writeJSON(w, http.StatusOK, h.sessionView())
}

func (h *Handler) acceptPendingInvitation(r *http.Request) {
	ctx := r.Context()

	token, ok, err := h.session.TakePendingInvitation(ctx)
	if err != nil {
		h.logger.Warn("failed to read pending invitation", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	if err := h.services.Auth.AcceptInvitation(ctx, token); err != nil {
		h.logger.Warn("pending invitation not accepted", zap.Error(err))
		h.notifications.Add(notify.KindError, "Invitation failed", "The invitation could not be accepted.", "")
		return
	}
	h.notifications.Add(notify.KindSuccess, "Invitation accepted", "You joined the workspace.", "/workspaces")
}

// SaveInvitation handles POST /v1/session/invitation: an invitation token
// opened while signed out is kept until the next sign-in.
func (h *Handler) SaveInvitation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing invitation token", "")
		return
	}

	if h.session.Authenticated() {
		if err := h.services.Auth.AcceptInvitation(r.Context(), req.Token); err != nil {
			h.writeUpstreamError(w, "Accept invitation", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
		return
	}

	if err := h.session.SetPendingInvitation(r.Context(), req.Token); err != nil {
		h.logger.Error("failed to store pending invitation", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "session_error", "Failed to store invitation", "")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
}

// Logout handles POST /v1/session/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		h.logger.Error("failed to clear session", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "session_error", "Failed to clear session", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
