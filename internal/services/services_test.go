package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/apiclient"
)

type staticToken string

func (s staticToken) Token() (string, uint64) { return string(s), 1 }
func (s staticToken) Expire(uint64) bool      { return false }

func newTestServices(t *testing.T, mux *http.ServeMux) *Services {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := apiclient.New(apiclient.Config{BaseURL: srv.URL + "/api/v1"}, staticToken("tok"), zap.NewNop())
	return New(c)
}

func TestAuth_LoginUsesPasswordForm(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "ops@example.com", r.PostForm.Get("username"))
		assert.Equal(t, "hunter2", r.PostForm.Get("password"))
		json.NewEncoder(w).Encode(Token{AccessToken: "jwt", TokenType: "bearer"})
	})

	svc := newTestServices(t, mux)
	tok, err := svc.Auth.Login(context.Background(), "ops@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "jwt", tok.AccessToken)
}

func TestAuth_VerifyOTPSurfacesDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Invalid or expired OTP"}`))
	})

	svc := newTestServices(t, mux)
	_, err := svc.Auth.VerifyOTP(context.Background(), "ops@example.com", "000000")

	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid or expired OTP", apiErr.Detail)
}

func TestProjects_ListPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/projects", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20", r.URL.Query().Get("skip"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode([]Project{{ID: "p1", Name: "llm-gateway"}})
	})

	svc := newTestServices(t, mux)
	projects, err := svc.Projects.List(context.Background(), Page{Skip: 20, Limit: 10})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "llm-gateway", projects[0].Name)
}

func TestIntegrations_ExchangeCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/integrations/github/callback", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc", body["code"])
		json.NewEncoder(w).Encode(Integration{ID: "i1", Provider: "github", Status: "connected"})
	})

	svc := newTestServices(t, mux)
	got, err := svc.Integrations.ExchangeCode(context.Background(), "github", "abc", "http://localhost:8080/v1/oauth/github/callback")
	require.NoError(t, err)
	assert.Equal(t, "connected", got.Status)
}

func TestAuditLogs_ExportCSV(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/audit-logs/export", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "csv", q.Get("format"))
		assert.Equal(t, "login", q.Get("action"))
		assert.Equal(t, "2026-01-01T00:00:00Z", q.Get("start_date"))
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("id,action\n1,login\n"))
	})

	svc := newTestServices(t, mux)
	file, err := svc.AuditLogs.ExportCSV(context.Background(), AuditFilter{Action: "login", From: from})
	require.NoError(t, err)
	assert.Equal(t, "audit-logs.csv", file.Name, "missing disposition falls back to a default name")
	assert.Equal(t, "id,action\n1,login\n", string(file.Data))
}

func TestReports_GenerateDefaultsLanguage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/reports/generate", func(w http.ResponseWriter, r *http.Request) {
		var req GenerateReportRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "en", req.Language)
		assert.Equal(t, ReportEUAIAct, req.Type)
		json.NewEncoder(w).Encode(Report{ID: "r1", Type: req.Type, Language: req.Language, Status: "pending"})
	})

	svc := newTestServices(t, mux)
	report, err := svc.Reports.Generate(context.Background(), GenerateReportRequest{Type: ReportEUAIAct})
	require.NoError(t, err)
	assert.Equal(t, "pending", report.Status)

	_, err = svc.Reports.Generate(context.Background(), GenerateReportRequest{})
	assert.Error(t, err)
}

func TestActivity_Recent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/activity/recent", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "15", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode([]Activity{{ID: "a1", Type: "scan", ResourceID: "s9", Title: "Scan completed"}})
	})

	svc := newTestServices(t, mux)
	items, err := svc.Activity.Recent(context.Background(), 15)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "s9", items[0].ResourceID)
}
