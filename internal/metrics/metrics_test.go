package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestRecordRequest(t *testing.T) {
	RecordRequest("GET", "/v1/notifications", 200, 100*time.Millisecond)
	RecordRequest("POST", "/v1/notifications", 201, 50*time.Millisecond)
	RecordRequest("GET", "/v1/toasts", 404, 10*time.Millisecond)
}

func TestRecordNotificationAdded(t *testing.T) {
	RecordNotificationAdded("error")
	RecordNotificationAdded("info")
}

func TestRecordToast(t *testing.T) {
	RecordToast("shown")
	RecordToast("dismissed")
}

func TestRecordAPICall(t *testing.T) {
	RecordAPICall("GET", 200, 20*time.Millisecond)
	RecordAPICall("POST", 422, 30*time.Millisecond)
	RecordAPICall("GET", 0, time.Second)
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{401, "4xx"},
		{503, "5xx"},
		{0, "error"},
	}

	for _, tt := range tests {
		if got := statusClass(tt.status); got != tt.want {
			t.Errorf("statusClass(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestDomainCounters(t *testing.T) {
	RecordUnauthorizedLogout()
	RecordOAuthCallback("github", "ok")
	RecordOAuthCallback("gitlab", "state_mismatch")
	RecordRelayDelivery("sns", "delivered")
	RecordRelayDelivery("webhook", "failed")
	RecordDigest("sent")
	RecordIdempotencyHit()
	RecordRateLimitRejection("auth")
	SetUnreadNotifications(3)
}

func TestHandler(t *testing.T) {
	handler := Handler()
	if handler == nil {
		t.Fatal("Handler should not return nil")
	}

	RecordNotificationAdded("warning")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), "sentinel_notifications_added_total") {
		t.Error("metrics response should expose sentinel_notifications_added_total")
	}
}

func TestMiddleware(t *testing.T) {
	innerCalled := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		innerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	handler := Middleware(inner)
	req := httptest.NewRequest("POST", "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !innerCalled {
		t.Error("inner handler should have been called")
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Post("/v1/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest("POST", "/v1/notifications/123-abc/read", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
}

func TestResponseWriter_DefaultStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	rw.Write([]byte("test"))

	if rw.status != http.StatusOK {
		t.Errorf("expected default status 200, got %d", rw.status)
	}
}

func TestResponseWriter_ExplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)

	if rw.status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rw.status)
	}
}
