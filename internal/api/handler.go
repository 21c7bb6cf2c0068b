// Package api is the gateway's HTTP surface over the console state:
// notifications, toasts, the activity panel, OAuth redirects and the
// session.
package api

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/activity"
	"github.com/lalithlochan/sentinel/internal/notify"
	"github.com/lalithlochan/sentinel/internal/oauth"
	"github.com/lalithlochan/sentinel/internal/redis"
	"github.com/lalithlochan/sentinel/internal/services"
	"github.com/lalithlochan/sentinel/internal/session"
	"github.com/lalithlochan/sentinel/internal/toast"
)

// Deps are the components the handlers drive. Idempotency is nil when
// Redis is not configured.
type Deps struct {
	Notifications *notify.Store
	Toasts        *toast.Renderer
	Activity      *activity.Center
	OAuth         *oauth.Flow
	Session       *session.Session
	Services      *services.Services
	Idempotency   *redis.IdempotencyService
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger        *zap.Logger
	notifications *notify.Store
	toasts        *toast.Renderer
	activity      *activity.Center
	oauth         *oauth.Flow
	session       *session.Session
	services      *services.Services
	idempotency   *redis.IdempotencyService
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, d Deps) *Handler {
	return &Handler{
		logger:        logger,
		notifications: d.Notifications,
		toasts:        d.Toasts,
		activity:      d.Activity,
		oauth:         d.OAuth,
		session:       d.Session,
		services:      d.Services,
		idempotency:   d.Idempotency,
	}
}

// Routes mounts every /v1 endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/notifications", h.ListNotifications)
	r.Post("/notifications", h.CreateNotification)
	r.Delete("/notifications", h.ClearNotifications)
	r.Post("/notifications/read-all", h.MarkAllNotificationsRead)
	r.Post("/notifications/{id}/read", h.MarkNotificationRead)
	r.Delete("/notifications/{id}", h.DeleteNotification)

	r.Get("/toasts", h.ListToasts)
	r.Post("/toasts/{id}/dismiss", h.DismissToast)

	r.Get("/activity", h.OpenActivity)
	r.Post("/activity/close", h.CloseActivity)
	r.Post("/activity/pointer", h.ActivityPointer)
	r.Post("/activity/{id}/select", h.SelectActivity)

	r.Get("/oauth/{provider}/start", h.StartOAuth)
	r.Get("/oauth/{provider}/callback", h.OAuthCallback)

	r.Get("/session", h.GetSession)
	r.Post("/session/login", h.Login)
	r.Post("/session/logout", h.Logout)
	r.Post("/session/invitation", h.SaveInvitation)

	r.Get("/dashboard", h.Dashboard)
	r.Get("/audit-logs/export", h.ExportAuditLogs)
}
