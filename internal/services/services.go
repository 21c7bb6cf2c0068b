// Package services has one typed client per platform resource area. They
// are thin: every call is a single request through apiclient.
package services

import (
	"net/url"
	"strconv"

	"github.com/lalithlochan/sentinel/internal/apiclient"
)

// Services bundles every resource client over one API client.
type Services struct {
	Auth         *AuthService
	Projects     *ProjectService
	Workspaces   *WorkspaceService
	Integrations *IntegrationService
	ScanPolicies *ScanPolicyService
	AuditLogs    *AuditLogService
	Alerting     *AlertingService
	Score        *ScoreService
	Fingerprints *FingerprintService
	Reports      *ReportService
	Firewall     *FirewallService
	Activity     *ActivityService
}

func New(c *apiclient.Client) *Services {
	return &Services{
		Auth:         &AuthService{c: c},
		Projects:     &ProjectService{c: c},
		Workspaces:   &WorkspaceService{c: c},
		Integrations: &IntegrationService{c: c},
		ScanPolicies: &ScanPolicyService{c: c},
		AuditLogs:    &AuditLogService{c: c},
		Alerting:     &AlertingService{c: c},
		Score:        &ScoreService{c: c},
		Fingerprints: &FingerprintService{c: c},
		Reports:      &ReportService{c: c},
		Firewall:     &FirewallService{c: c},
		Activity:     &ActivityService{c: c},
	}
}

// Page selects a window of a list endpoint.
type Page struct {
	Skip  int
	Limit int
}

func (p Page) values() url.Values {
	v := url.Values{}
	if p.Skip > 0 {
		v.Set("skip", strconv.Itoa(p.Skip))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	return v
}
