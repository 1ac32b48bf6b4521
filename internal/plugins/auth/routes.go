package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/innohedge/console/internal/middleware"
)

// RegisterRoutes sets up all auth-related routes on the given Echo instance.
// Auth pages are public. POST endpoints are rate-limited per IP: 10 login
// attempts per minute, 5 password requests per 15 minutes.
func RegisterRoutes(e *echo.Echo, h *Handler, service AuthService) {
	optional := OptionalAuth(service)

	e.GET("/login", h.LoginForm, optional)
	e.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))

	passwordLimit := middleware.RateLimit(5, 15*time.Minute)
	e.GET("/forgot-password", h.ForgotPasswordForm, optional)
	e.POST("/forgot-password", h.ForgotPassword, passwordLimit)
	e.GET("/reset-password", h.ResetPasswordForm, optional)
	e.POST("/reset-password", h.ResetPassword, passwordLimit)

	e.POST("/logout", h.Logout)
}
