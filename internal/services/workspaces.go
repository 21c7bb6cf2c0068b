package services

import (
	"context"
	"net/url"

	"github.com/lalithlochan/sentinel/internal/apiclient"
)

type WorkspaceService struct {
	c *apiclient.Client
}

type Workspace struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	MemberCount int    `json:"member_count"`
}

type Member struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func (s *WorkspaceService) List(ctx context.Context) ([]Workspace, error) {
	var out []Workspace
	if err := s.c.Get(ctx, "/workspaces", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *WorkspaceService) Create(ctx context.Context, name string) (*Workspace, error) {
	var w Workspace
	if err := s.c.Post(ctx, "/workspaces", map[string]string{"name": name}, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *WorkspaceService) Members(ctx context.Context, workspaceID string) ([]Member, error) {
	var out []Member
	if err := s.c.Get(ctx, "/workspaces/"+url.PathEscape(workspaceID)+"/members", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Invite mails an invitation; the invitee lands on the console with a
// pending invitation token.
func (s *WorkspaceService) Invite(ctx context.Context, workspaceID, email, role string) error {
	body := map[string]string{"email": email, "role": role}
	return s.c.Post(ctx, "/workspaces/"+url.PathEscape(workspaceID)+"/invitations", body, nil)
}

func (s *WorkspaceService) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	return s.c.Delete(ctx, "/workspaces/"+url.PathEscape(workspaceID)+"/members/"+url.PathEscape(userID))
}
