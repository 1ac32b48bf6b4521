// Package auth handles console sign-in. Credentials are checked by the
// backend API; on success the backend's bearer token is kept server-side in
// a Redis session and the browser only ever holds an opaque session ID.
// It also serves the forgot/reset password pages, which are thin forms over
// the backend's password endpoints.
//
// This is a CORE plugin -- always enabled.
package auth

import (
	"time"
)

// Session is an authenticated console session stored in Redis under
// "session:<id>" (JSON-encoded). ID is the key suffix and is not stored.
type Session struct {
	ID         string    `json:"-"`
	APIToken   string    `json:"api_token"`
	Email      string    `json:"email"`
	RememberMe bool      `json:"remember_me"`
	CreatedAt  time.Time `json:"created_at"`
}

// LoginInput is the validated input for signing in.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
}

// User-facing messages for the auth pages.
const (
	msgLoginFailed     = "Login failed. Please try again."
	msgResetLinkSent   = "Reset link sent to your email!"
	msgGenericFailure  = "Something went wrong!"
	msgPasswordsDiffer = "Passwords do not match!"
	msgResetSucceeded  = "Password reset successful! Please log in."
	msgLoginRequired   = "Email and password are required."
	msgEmailRequired   = "Email is required."
	msgResetLinkBroken = "This reset link is invalid. Request a new one."
)
