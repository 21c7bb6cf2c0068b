package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/apiclient"
	"github.com/lalithlochan/sentinel/internal/circuitbreaker"
	"github.com/lalithlochan/sentinel/internal/session"
)

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string                 `json:"type"`
	Title  string                 `json:"title"`
	Status int                    `json:"status"`
	Detail string                 `json:"detail,omitempty"`
	Fields []apiclient.FieldError `json:"fields,omitempty"`
	// Redirect is where the console must navigate, set on 401.
	Redirect string `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	writeProblem(w, ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func writeProblem(w http.ResponseWriter, p ErrorResponse) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// writeUpstreamError maps a platform call failure onto a problem. Backend
// validation details are passed through verbatim.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, op string, err error) {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apiclient.ErrUnauthorized):
		writeProblem(w, ErrorResponse{
			Type:     "unauthorized",
			Title:    "Session expired",
			Status:   http.StatusUnauthorized,
			Detail:   "Sign in again to continue",
			Redirect: session.LoginRoute,
		})
	case errors.As(err, &apiErr):
		writeProblem(w, ErrorResponse{
			Type:   "upstream_error",
			Title:  op + " failed",
			Status: apiErr.Status,
			Detail: apiErr.Detail,
			Fields: apiErr.Fields,
		})
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		h.writeError(w, http.StatusServiceUnavailable, "upstream_unavailable",
			"Platform API unavailable", "Too many recent failures, retry shortly")
	default:
		h.logger.Error("platform call failed", zap.String("op", op), zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "upstream_error", op+" failed", "")
	}
}
