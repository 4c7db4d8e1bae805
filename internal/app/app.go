// Package app is the application bootstrap and dependency injection root.
// It creates the Echo instance, installs global middleware and the error
// handler, and wires the auth components together.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Carl26-1/fitforge-email-auth/internal/apperror"
	"github.com/Carl26-1/fitforge-email-auth/internal/auth"
	"github.com/Carl26-1/fitforge-email-auth/internal/config"
	"github.com/Carl26-1/fitforge-email-auth/internal/middleware"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// Store is the credential store. Nil in proxy deployments.
	Store auth.UserStore

	// Limiter guards the verification-code flow.
	Limiter auth.CodeLimiter

	// Mail delivers verification codes.
	Mail auth.MailSender

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, store auth.UserStore, limiter auth.CodeLimiter, mail auth.MailSender) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Configure trusted reverse proxy IPs so c.RealIP() returns the actual
	// client IP instead of the proxy's IP. The per-IP send-code limit
	// depends on accurate client IPs.
	middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",    // Localhost
		"10.0.0.0/8",     // Docker default bridge
		"172.16.0.0/12",  // Docker bridge (alternate range)
		"192.168.0.0/16", // Common LAN
		"fd00::/8",       // IPv6 private
	})

	app := &App{
		Config:  cfg,
		Store:   store,
		Limiter: limiter,
		Mail:    mail,
		Echo:    e,
	}

	// Register global middleware in order of execution.
	app.setupMiddleware()

	// Register the custom error handler that maps AppErrors to HTTP responses.
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	// Request logging -- log every request with method, path, status, latency.
	a.Echo.Use(middleware.RequestLogger())

	// CORS -- only origins on the allow-list receive CORS headers, and those
	// get credentials so the auth cookies work cross-origin.
	if len(a.Config.CORSOrigins) > 0 {
		a.Echo.Use(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   a.Config.CORSOrigins,
			AllowCredentials: true,
		}))
	}
}

// errorHandler is the custom Echo error handler. Every error becomes a JSON
// body with ok:false and a client-safe message; rate-limit errors also carry
// the retry-after hint both as a header and in the body.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "An unexpected error occurred. Please try again."
	retryAfter := 0

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
		retryAfter = appErr.RetryAfter

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		// Echo's built-in errors (e.g., 404 from the router).
		code = echoErr.Code
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	default:
		// Truly unexpected error -- log it.
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	body := map[string]any{
		"ok":      false,
		"message": message,
	}
	if retryAfter > 0 {
		body["retryAfterSec"] = retryAfter
		c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	}

	c.JSON(code, body)
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting FitForge auth server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}
