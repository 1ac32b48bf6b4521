package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/innohedge/console/internal/middleware"
	"github.com/innohedge/console/internal/plugins/auth"
	"github.com/innohedge/console/internal/plugins/dashboard"
	"github.com/innohedge/console/internal/plugins/landing"
	"github.com/innohedge/console/internal/templates/layouts"
)

// RegisterRoutes sets up all application routes. This is the single place
// where plugin routes are aggregated.
func (a *App) RegisterRoutes() {
	e := a.Echo

	authService := auth.NewAuthService(a.API, a.Redis, a.Config.Auth.SessionTTL, a.Config.Auth.RememberMeTTL)
	a.installLayoutInjector()

	// Health check for container orchestration.
	e.GET("/healthz", a.healthz)

	landing.RegisterRoutes(e, landing.NewHandler(a.API, a.Brand, a.Config.RecaptchaSiteKey), authService)
	auth.RegisterRoutes(e, auth.NewHandler(authService, a.Dashboards), authService)
	dashboard.RegisterRoutes(e, dashboard.NewHandler(a.Dashboards), authService)
}

// installLayoutInjector copies per-request layout data (session, CSRF
// token, brand, nav state) into the context the page templates read.
func (a *App) installLayoutInjector() {
	name, supportEmail := a.Brand.Name, a.Brand.SupportEmail
	middleware.LayoutInjector = func(c echo.Context, ctx context.Context) context.Context {
		ctx = layouts.SetCSRFToken(ctx, middleware.GetCSRFToken(c))
		ctx = layouts.SetBrand(ctx, name, supportEmail)
		ctx = layouts.SetActivePath(ctx, c.Request().URL.Path)
		if session := auth.GetSession(c); session != nil {
			ctx = layouts.SetIsAuthenticated(ctx, true)
			ctx = layouts.SetUserEmail(ctx, session.Email)
		}
		return ctx
	}
}

// healthz reports whether Redis is reachable.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "redis unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":     "ok",
		"dashboards": a.Dashboards.Len(),
	})
}
