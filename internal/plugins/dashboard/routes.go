package dashboard

import (
	"github.com/labstack/echo/v4"

	"github.com/innohedge/console/internal/plugins/auth"
)

// RegisterRoutes sets up the dashboard routes. Every route requires a
// logged-in session.
func RegisterRoutes(e *echo.Echo, h *Handler, authService auth.AuthService) {
	g := e.Group("/dashboard", auth.RequireAuth(authService))

	g.GET("", h.Show)
	g.POST("/reload", h.Reload)
	g.POST("/sidebar", h.ToggleSidebar)

	// Users.
	g.GET("/users/:id", h.SelectUser)
	g.POST("/users/:id/role", h.UpdateRole)
	g.GET("/users/:id/delete", h.ConfirmDeleteUser)
	g.POST("/users/:id/delete", h.DeleteUser)

	// Form submissions.
	g.GET("/forms/:id", h.SelectForm)
	g.GET("/forms/:id/delete", h.ConfirmDeleteForm)
	g.POST("/forms/:id/delete", h.DeleteForm)

	g.POST("/settings", h.UpdateSettings)
	g.GET("/traffic/stream", h.TrafficStream)
}
