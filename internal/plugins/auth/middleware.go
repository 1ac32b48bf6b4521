package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// contextKeySession is the Echo context key holding the *Session.
const contextKeySession = "auth_session"

// RequireAuth returns middleware that validates the session cookie and puts
// the session on the Echo context. Requests without a live session are sent
// to /login (or get 401 for event-stream clients, which cannot follow a
// redirect to an HTML page).
func RequireAuth(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := getSessionToken(c)
			if id == "" {
				return handleUnauthenticated(c)
			}

			session, err := service.ValidateSession(c.Request().Context(), id)
			if err != nil {
				// Invalid or expired session -- clear the stale cookie.
				clearSessionCookie(c)
				return handleUnauthenticated(c)
			}

			c.Set(contextKeySession, session)
			return next(c)
		}
	}
}

// OptionalAuth loads the session when there is one but never rejects the
// request. Public pages use it so the navbar knows who is signed in.
func OptionalAuth(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := getSessionToken(c); id != "" {
				if session, err := service.ValidateSession(c.Request().Context(), id); err == nil {
					c.Set(contextKeySession, session)
				}
			}
			return next(c)
		}
	}
}

// handleUnauthenticated redirects browsers to the login page.
func handleUnauthenticated(c echo.Context) error {
	if strings.Contains(c.Request().Header.Get("Accept"), "text/event-stream") {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return c.Redirect(http.StatusSeeOther, "/login")
}

// GetSession retrieves the authenticated session from the Echo context.
// Returns nil if the request is not authenticated.
func GetSession(c echo.Context) *Session {
	session, ok := c.Get(contextKeySession).(*Session)
	if !ok {
		return nil
	}
	return session
}
