package api

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lalithlochan/sentinel/internal/apiclient"
	"github.com/lalithlochan/sentinel/internal/services"
)

type dashboard struct {
	Projects    []services.Project      `json:"projects"`
	Score       *services.SecurityScore `json:"score"`
	RecentScans []services.Scan         `json:"recent_scans"`
	// Failed names the sections that could not be loaded.
	Failed []string `json:"failed,omitempty"`
}

// Dashboard handles GET /v1/dashboard. The three sections load in parallel
// and each degrades to empty on failure, except an expired session.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var (
		d        = dashboard{Projects: []services.Project{}, RecentScans: []services.Scan{}}
		g, ctx   = errgroup.WithContext(r.Context())
		failures = make([]error, 3)
	)

	load := func(i int, fn func(context.Context) error) {
		g.Go(func() error {
			failures[i] = fn(ctx)
			if errors.Is(failures[i], apiclient.ErrUnauthorized) {
				return failures[i]
			}
			return nil
		})
	}

	load(0, func(ctx context.Context) error {
		projects, err := h.services.Projects.List(ctx, services.Page{Limit: 10})
		if err == nil {
			d.Projects = projects
		}
		return err
	})
	load(1, func(ctx context.Context) error {
		score, err := h.services.Score.Current(ctx)
		if err == nil {
			d.Score = score
		}
		return err
	})
	load(2, func(ctx context.Context) error {
		scans, err := h.services.Projects.RecentScans(ctx, 5)
		if err == nil {
			d.RecentScans = scans
		}
		return err
	})

	if err := g.Wait(); err != nil {
		h.writeUpstreamError(w, "Load dashboard", err)
		return
	}

	for i, name := range []string{"projects", "score", "recent_scans"} {
		if failures[i] != nil {
			d.Failed = append(d.Failed, name)
			h.logger.Warn("dashboard section unavailable",
				zap.String("section", name),
				zap.Error(failures[i]),
			)
		}
	}

	writeJSON(w, http.StatusOK, d)
}

// ExportAuditLogs handles GET /v1/audit-logs/export and streams the CSV the
// platform renders.
func (h *Handler) ExportAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.AuditFilter{
		Action:   q.Get("action"),
		Actor:    q.Get("actor"),
		Resource: q.Get("resource_type"),
	}

	for param, dst := range map[string]*time.Time{"start_date": &filter.From, "end_date": &filter.To} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid "+param, param+" must be RFC 3339")
			return
		}
		*dst = t
	}

	file, err := h.services.AuditLogs.ExportCSV(r.Context(), filter)
	if err != nil {
		h.writeUpstreamError(w, "Export audit logs", err)
		return
	}

	name := file.Name
	if name == "" {
		name = "audit-logs-" + time.Now().UTC().Format("2006-01-02") + ".csv"
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "text/csv"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}
