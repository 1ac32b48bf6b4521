package auth

import (
	"embed"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/innohedge/console/internal/apiclient"
	"github.com/innohedge/console/internal/apperror"
	"github.com/innohedge/console/internal/middleware"
	"github.com/innohedge/console/internal/templates/layouts"
)

// sessionCookieName is the HTTP cookie used to store the session ID.
const sessionCookieName = "console_session"

//go:embed views/*.html
var viewsFS embed.FS

var pages = layouts.MustParsePages(viewsFS, "views/*.html")

// SessionReleaser frees per-session resources when a session ends. The
// dashboard registry implements it.
type SessionReleaser interface {
	Release(sessionID string)
}

// Handler handles HTTP requests for authentication. Handlers are thin: they
// read the form, call the service, and render the response.
type Handler struct {
	service  AuthService
	releaser SessionReleaser
}

// NewHandler creates a new auth handler. releaser may be nil.
func NewHandler(service AuthService, releaser SessionReleaser) *Handler {
	return &Handler{service: service, releaser: releaser}
}

// loginPage is the data for views/login.html.
type loginPage struct {
	Email      string
	RememberMe bool
	Notice     string
	Error      string
}

// LoginForm renders the login page (GET /login).
func (h *Handler) LoginForm(c echo.Context) error {
	if GetSession(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/dashboard")
	}
	var page loginPage
	if c.QueryParam("reset") == "success" {
		page.Notice = msgResetSucceeded
	}
	return middleware.Render(c, http.StatusOK, pages.Page("login", page))
}

// Login processes the login form submission (POST /login).
func (h *Handler) Login(c echo.Context) error {
	input := LoginInput{
		Email:      c.FormValue("email"),
		Password:   c.FormValue("password"),
		RememberMe: isChecked(c.FormValue("rememberMe")),
	}

	session, err := h.service.Login(c.Request().Context(), input)
	if err != nil {
		page := loginPage{
			Email:      input.Email,
			RememberMe: input.RememberMe,
			Error:      userMessage(err, msgLoginFailed),
		}
		return middleware.Render(c, http.StatusOK, pages.Page("login", page))
	}

	setSessionCookie(c, session.ID, h.service.TTL(session.RememberMe), session.RememberMe)
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}

// Logout destroys the session, releases the session's dashboard and clears
// the cookie (POST /logout). The backend is not contacted.
func (h *Handler) Logout(c echo.Context) error {
	if id := getSessionToken(c); id != "" {
		if err := h.service.DestroySession(c.Request().Context(), id); err != nil {
			// The cookie is cleared regardless.
			slog.Warn("failed to destroy session", slog.Any("error", err))
		}
		if h.releaser != nil {
			h.releaser.Release(id)
		}
	}

	clearSessionCookie(c)
	return c.Redirect(http.StatusSeeOther, "/login")
}

// --- Password Reset ---

// passwordPage is the data for the forgot/reset password views.
type passwordPage struct {
	Email   string
	Token   string
	Message string
	Error   string
}

// ForgotPasswordForm renders the forgot password page (GET /forgot-password).
func (h *Handler) ForgotPasswordForm(c echo.Context) error {
	return middleware.Render(c, http.StatusOK, pages.Page("forgot_password", passwordPage{}))
}

// ForgotPassword asks the backend to send a reset link (POST /forgot-password).
func (h *Handler) ForgotPassword(c echo.Context) error {
	email := c.FormValue("email")
	if err := h.service.ForgotPassword(c.Request().Context(), email); err != nil {
		page := passwordPage{Email: email, Error: userMessage(err, msgGenericFailure)}
		return middleware.Render(c, http.StatusOK, pages.Page("forgot_password", page))
	}
	return middleware.Render(c, http.StatusOK, pages.Page("forgot_password", passwordPage{Message: msgResetLinkSent}))
}

// ResetPasswordForm renders the reset password page (GET /reset-password?token=...).
func (h *Handler) ResetPasswordForm(c echo.Context) error {
	token := c.QueryParam("token")
	page := passwordPage{Token: token}
	if token == "" {
		page.Error = msgResetLinkBroken
	}
	return middleware.Render(c, http.StatusOK, pages.Page("reset_password", page))
}

// ResetPassword sets the new password (POST /reset-password). A mismatched
// confirmation is caught here without calling the backend.
func (h *Handler) ResetPassword(c echo.Context) error {
	token := c.FormValue("token")
	password := c.FormValue("password")
	confirm := c.FormValue("confirm")

	if password != confirm {
		page := passwordPage{Token: token, Error: msgPasswordsDiffer}
		return middleware.Render(c, http.StatusOK, pages.Page("reset_password", page))
	}

	if err := h.service.ResetPassword(c.Request().Context(), token, password); err != nil {
		page := passwordPage{Token: token, Error: userMessage(err, msgGenericFailure)}
		return middleware.Render(c, http.StatusOK, pages.Page("reset_password", page))
	}

	return c.Redirect(http.StatusSeeOther, "/login?reset=success")
}

// userMessage picks the text shown for a failed form: the backend's own
// message, a validation message, or fallback.
func userMessage(err error, fallback string) string {
	if apperror.SafeCode(err) < http.StatusInternalServerError {
		return apperror.SafeMessage(err)
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		slog.Error("auth request failed", slog.Any("error", err))
	}
	return apiclient.MessageOr(err, fallback)
}

// isChecked interprets an HTML checkbox value.
func isChecked(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// --- Cookie helpers ---

// getSessionToken reads the session ID from the cookie.
func getSessionToken(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}

// setSessionCookie sets the session cookie. Remember-me sessions persist
// for ttl; others end with the browser session.
func setSessionCookie(c echo.Context, id string, ttl time.Duration, persistent bool) {
	req := c.Request()
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	}
	if persistent {
		cookie.MaxAge = int(ttl / time.Second)
	}
	c.SetCookie(cookie)
}

// clearSessionCookie removes the session cookie by setting MaxAge to -1.
func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
