package services

import (
	"context"
	"net/url"
	"time"

	"github.com/lalithlochan/sentinel/internal/apiclient"
)

type AuthService struct {
	c *apiclient.Client
}

type RegisterRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FullName         string `json:"full_name"`
	OrganizationName string `json:"organization_name,omitempty"`
	InvitationToken  string `json:"invitation_token,omitempty"`
}

// Token is what the login and OTP endpoints answer with.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	OrganizationID string    `json:"organization_id"`
	IsVerified     bool      `json:"is_verified"`
	CreatedAt      time.Time `json:"created_at"`
}

// Register starts sign-up; the platform mails a one-time code.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) error {
	return s.c.Post(ctx, "/auth/register", req, nil)
}

// VerifyOTP completes sign-up and returns a session token.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*Token, error) {
	var tok Token
	body := map[string]string{"email": email, "otp": code}
	if err := s.c.Post(ctx, "/auth/verify-otp", body, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	return s.c.Post(ctx, "/auth/resend-otp", map[string]string{"email": email}, nil)
}

// Login exchanges credentials for a token using the password form grant.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Token, error) {
	form := url.Values{
		"username": {email},
		"password": {password},
	}
	var tok Token
	if err := s.c.PostForm(ctx, "/auth/login", form, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func (s *AuthService) Me(ctx context.Context) (*User, error) {
	var u User
	if err := s.c.Get(ctx, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// AcceptInvitation joins the workspace behind an invitation token.
func (s *AuthService) AcceptInvitation(ctx context.Context, token string) error {
	return s.c.Post(ctx, "/invitations/"+url.PathEscape(token)+"/accept", nil, nil)
}
