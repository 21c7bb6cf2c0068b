package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lalithlochan/sentinel/internal/activity"
)

// ListToasts handles GET /v1/toasts
func (h *Handler) ListToasts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data": h.toasts.Toasts(),
	})
}

// DismissToast handles POST /v1/toasts/{id}/dismiss. The answer carries the
// notification link so the console can navigate.
func (h *Handler) DismissToast(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	link, ok := h.toasts.Dismiss(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "Toast not found", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":   id,
		"link": link,
	})
}

type activityPanel struct {
	Open    bool             `json:"open"`
	State   string           `json:"state"`
	Error   string           `json:"error,omitempty"`
	Entries []activity.Entry `json:"data"`
}

// OpenActivity handles GET /v1/activity. Opening fetches the feed once; a
// failed fetch answers 200 with an empty list and the error.
func (h *Handler) OpenActivity(w http.ResponseWriter, r *http.Request) {
	entries := h.activity.Open(r.Context())
	snap := h.activity.Snapshot()

	writeJSON(w, http.StatusOK, activityPanel{
		Open:    h.activity.IsOpen(),
		State:   snap.State.String(),
		Error:   snap.Error,
		Entries: entries,
	})
}

// CloseActivity handles POST /v1/activity/close
func (h *Handler) CloseActivity(w http.ResponseWriter, r *http.Request) {
	h.activity.Close()
	w.WriteHeader(http.StatusNoContent)
}

// ActivityPointer handles POST /v1/activity/pointer with {"inside": bool}.
func (h *Handler) ActivityPointer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Inside bool `json:"inside"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	closed := h.activity.PointerDown(req.Inside)
	writeJSON(w, http.StatusOK, map[string]bool{
		"closed": closed,
		"open":   h.activity.IsOpen(),
	})
}

// SelectActivity handles POST /v1/activity/{id}/select
func (h *Handler) SelectActivity(w http.ResponseWriter, r *http.Request) {
	route, err := h.activity.Select(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, activity.ErrPanelClosed):
		h.writeError(w, http.StatusConflict, "panel_closed", "Activity panel is closed", "Open the panel first")
		return
	case errors.Is(err, activity.ErrUnknownEntry):
		h.writeError(w, http.StatusNotFound, "not_found", "Activity not found", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"route": route})
}
