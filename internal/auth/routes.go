package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires the auth endpoints onto the given group. The strategy
// is picked here, once: with a proxy the four account operations delegate
// upstream, without one the local handler serves them. Send-code is local in
// both modes so rate limiting always applies, but proxied deployments skip
// the registered-email check the local store cannot answer.
func RegisterRoutes(g *echo.Group, h *Handler, proxy *ProxyHandler) {
	if proxy != nil {
		g.POST("/register", proxy.Register)
		g.POST("/login", proxy.Login)
		g.GET("/session", proxy.Session)
		g.POST("/logout", proxy.Logout)
		g.POST("/send-code", func(c echo.Context) error {
			return h.sendCode(c, true)
		})
		return
	}

	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.GET("/session", h.Session)
	g.POST("/logout", h.Logout)
	g.POST("/send-code", h.SendCode)
}
