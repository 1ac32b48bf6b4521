package landing

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/innohedge/console/internal/middleware"
	"github.com/innohedge/console/internal/plugins/auth"
)

// RegisterRoutes sets up the public landing routes. Contact submissions are
// limited to 5 per IP per minute.
func RegisterRoutes(e *echo.Echo, h *Handler, authService auth.AuthService) {
	optional := auth.OptionalAuth(authService)

	e.GET("/", h.Index, optional)
	e.POST("/contact", h.Contact, optional, middleware.RateLimit(5, time.Minute))
}
