package apiclient

import (
	"context"
	"net/http"
)

// Login exchanges credentials for a bearer token (POST /auth/login).
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", req, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &SchemaError{Field: "login.token", Reason: "missing"}
	}
	return resp.Token, nil
}

// ForgotPassword asks the backend to email a reset link
// (POST /auth/forgot-password).
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", "", body, nil)
}

// ResetPassword sets a new password using a reset token
// (POST /auth/reset-password).
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}
	return c.do(ctx, http.MethodPost, "/auth/reset-password", "", body, nil)
}

// SubmitContact posts the landing page contact form (POST /forms/submit).
func (c *Client) SubmitContact(ctx context.Context, req ContactRequest) error {
	return c.do(ctx, http.MethodPost, "/forms/submit", "", req, nil)
}
