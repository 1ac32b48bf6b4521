// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (Redis client, backend API client,
// push dialer, Echo instance) and wires the plugins together.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/innohedge/console/internal/apiclient"
	"github.com/innohedge/console/internal/apperror"
	"github.com/innohedge/console/internal/brand"
	"github.com/innohedge/console/internal/config"
	"github.com/innohedge/console/internal/middleware"
	"github.com/innohedge/console/internal/plugins/dashboard"
	"github.com/innohedge/console/internal/push"
	"github.com/innohedge/console/internal/templates/pages"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// Brand is the brand variant being served.
	Brand brand.Brand

	// Redis stores login sessions and may carry the push channel.
	Redis *redis.Client

	// API is the backend REST client.
	API *apiclient.Client

	// Push opens live traffic channels for dashboards.
	Push push.Dialer

	// Dashboards keeps one mounted dashboard per login session.
	Dashboards *dashboard.Registry

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, b brand.Brand, rdb *redis.Client, api *apiclient.Client, dialer push.Dialer) *App {
	e := echo.New()

	// We log our own startup line.
	e.HideBanner = true
	e.HidePort = true

	// c.RealIP() feeds the rate limiters, so only configured proxies may
	// override the remote address.
	middleware.TrustedProxies(e, cfg.TrustedProxies)

	app := &App{
		Config: cfg,
		Brand:  b,
		Redis:  rdb,
		API:    api,
		Push:   dialer,
		Echo:   e,
	}

	app.Dashboards = dashboard.NewRegistry(func(token string) *dashboard.Orchestrator {
		return dashboard.New(api, dialer, token, dashboard.Options{
			LoadTimeout:     cfg.Dashboard.LoadTimeout,
			DefaultSettings: b.DefaultSettings(),
		})
	}, cfg.Dashboard.IdleTimeout)

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	// Stylesheet and the live traffic script.
	e.Static("/static", "static")

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first, innermost (CSRF) runs last.
func (a *App) setupMiddleware() {
	// Must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(middleware.SecurityHeaders(a.Config.IsSecure()))

	// Double-submit cookie on every state-changing request.
	a.Echo.Use(middleware.CSRF())
}

// errorHandler maps domain errors (AppError) and Echo errors to HTTP
// responses: JSON for /api paths, a redirect to /login for 401 on browser
// requests, and a rendered error page otherwise.
func (a *App) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := defaultErrorMessage(code)

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		code = echoErr.Code
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = defaultErrorMessage(code)
		}
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if isAPIRequest(c) {
		c.JSON(code, map[string]string{
			"error":   http.StatusText(code),
			"message": message,
		})
		return
	}

	// Event streams cannot follow a redirect.
	if code == http.StatusUnauthorized && !strings.Contains(c.Request().Header.Get("Accept"), "text/event-stream") {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	if err := middleware.Render(c, code, pages.ErrorPage(code, message)); err != nil {
		slog.Error("rendering error page", slog.Any("error", err))
	}
}

// defaultErrorMessage returns a user-friendly message for common HTTP status codes
// when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "You need to log in to access this page."
	case http.StatusForbidden:
		return "You don't have permission to access this resource."
	case http.StatusNotFound:
		return "The page you're looking for doesn't exist or has been moved."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusUnprocessableEntity:
		return "The submitted data could not be processed."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	case http.StatusBadGateway:
		return "The backend returned an invalid response."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "Something went wrong on our end. Please try again."
	}
}

// isAPIRequest returns true if the request expects a JSON response.
func isAPIRequest(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api")
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting console server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
		slog.String("brand", a.Brand.Key),
	)
	return a.Echo.Start(addr)
}
