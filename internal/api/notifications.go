package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/metrics"
	"github.com/lalithlochan/sentinel/internal/notify"
	"github.com/lalithlochan/sentinel/internal/redis"
)

// NotificationRequest represents the incoming request body
type NotificationRequest struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

type notificationList struct {
	Data        []notify.Notification `json:"data"`
	Count       int                   `json:"count"`
	UnreadCount int                   `json:"unread_count"`
	HasUnread   bool                  `json:"has_unread"`
}

// ListNotifications handles GET /v1/notifications?unread=true
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	items := h.notifications.List()

	if r.URL.Query().Get("unread") == "true" {
		unread := make([]notify.Notification, 0, len(items))
		for _, n := range items {
			if !n.Read {
				unread = append(unread, n)
			}
		}
		items = unread
	}

	writeJSON(w, http.StatusOK, notificationList{
		Data:        items,
		Count:       len(items),
		UnreadCount: h.notifications.UnreadCount(),
		HasUnread:   h.notifications.HasUnread(),
	})
}

// CreateNotification handles POST /v1/notifications
// Supports idempotency via the Idempotency-Key header.
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idempotencyKey := r.Header.Get("Idempotency-Key")

	var req NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "title is required")
		return
	}

	scope := h.idempotencyScope()
	reserved := false
	if idempotencyKey != "" && h.idempotency != nil {
		cached, err := h.idempotency.CheckOrReserve(ctx, scope, idempotencyKey)
		switch {
		case errors.Is(err, redis.ErrDuplicateRequest):
			h.writeError(w, http.StatusConflict, "duplicate_request",
				"Request is already being processed",
				"Another request with this idempotency key is in progress")
			return
		case err != nil:
			h.logger.Warn("idempotency check failed, proceeding",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		case cached != nil:
			metrics.RecordIdempotencyHit()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Idempotency-Replayed", "true")
			w.WriteHeader(cached.StatusCode)
			_, _ = w.Write(cached.Body)
			return
		default:
			reserved = true
		}
	}

	// unknown types are stored as info
	n := h.notifications.Add(notify.Kind(req.Type), req.Title, req.Message, req.Link)

	body, err := json.Marshal(n)
	if err != nil {
		if reserved {
			_ = h.idempotency.Release(ctx, scope, idempotencyKey)
		}
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to encode notification", "")
		return
	}

	if reserved {
		result := &redis.IdempotencyResult{
			NotificationID: n.ID,
			StatusCode:     http.StatusCreated,
			Body:           body,
		}
		if err := h.idempotency.Store(ctx, scope, idempotencyKey, result, redis.IdempotencyTTL); err != nil {
			h.logger.Warn("failed to store idempotency result",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		}
	}

	h.logger.Info("notification created",
		zap.String("id", n.ID),
		zap.String("type", string(n.Kind)),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

// idempotencyScope keeps keys of different operators apart.
func (h *Handler) idempotencyScope() string {
	if email := h.session.Email(); email != "" {
		return email
	}
	return "anonymous"
}

// MarkNotificationRead handles POST /v1/notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.notifications.Get(id); !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "Notification not found", "")
		return
	}
	h.notifications.MarkAsRead(id)
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead handles POST /v1/notifications/read-all
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	h.notifications.MarkAllAsRead()
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNotification handles DELETE /v1/notifications/{id}
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.notifications.Get(id); !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "Notification not found", "")
		return
	}
	h.notifications.Clear(id)
	w.WriteHeader(http.StatusNoContent)
}

// ClearNotifications handles DELETE /v1/notifications
func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	h.notifications.ClearAll()
	h.logger.Info("notifications cleared")
	w.WriteHeader(http.StatusNoContent)
}
