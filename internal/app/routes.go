package app

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Carl26-1/fitforge-email-auth/internal/auth"
)

// RegisterRoutes sets up all application routes. The auth strategy (local
// handlers vs upstream relay) is decided here, once, from configuration.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Health check endpoint for container health monitoring.
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"ok": true})
	})

	codec := auth.NewTokenCodec(a.Config.SessionSecret)
	service := auth.NewAuthService(a.Store, codec, a.Limiter, a.Mail, a.Config.AllowUnsafeCodeFallback)
	handler := auth.NewHandler(service, auth.CookiePolicy{
		CrossSite:  a.Config.UseCrossSiteCookie(),
		Production: a.Config.IsProduction(),
	})

	var proxy *auth.ProxyHandler
	if a.Config.UseProxy() {
		proxy = auth.NewProxyHandler(a.Config.AuthProxyBaseURL)
	}

	auth.RegisterRoutes(e.Group("/api/auth"), handler, proxy)
}
