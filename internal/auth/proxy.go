package auth

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Carl26-1/fitforge-email-auth/internal/apperror"
)

// ProxyHandler relays the register/login/session/logout operations verbatim
// to an upstream auth service. Request cookies and bodies go up unchanged;
// upstream status, body, and Set-Cookie headers come back unchanged, so the
// upstream stays the sole authority over session cookies.
//
// The send-code flow is NOT proxied: codes are issued and rate-limited
// locally even in proxy deployments.
type ProxyHandler struct {
	baseURL string
	client  *http.Client
}

// NewProxyHandler creates a relay to the given upstream base URL.
func NewProxyHandler(baseURL string) *ProxyHandler {
	return &ProxyHandler{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Register relays POST /api/auth/register.
func (p *ProxyHandler) Register(c echo.Context) error {
	return p.relay(c, http.MethodPost, "/api/auth/register")
}

// Login relays POST /api/auth/login.
func (p *ProxyHandler) Login(c echo.Context) error {
	return p.relay(c, http.MethodPost, "/api/auth/login")
}

// Session relays GET /api/auth/session.
func (p *ProxyHandler) Session(c echo.Context) error {
	return p.relay(c, http.MethodGet, "/api/auth/session")
}

// Logout relays POST /api/auth/logout.
func (p *ProxyHandler) Logout(c echo.Context) error {
	return p.relay(c, http.MethodPost, "/api/auth/logout")
}

// relay forwards the request to the upstream and copies the response back.
func (p *ProxyHandler) relay(c echo.Context, method, path string) error {
	req, err := http.NewRequestWithContext(
		c.Request().Context(), method, p.baseURL+path, c.Request().Body,
	)
	if err != nil {
		return apperror.NewInternal(err)
	}

	if ct := c.Request().Header.Get(echo.HeaderContentType); ct != "" {
		req.Header.Set(echo.HeaderContentType, ct)
	}
	if cookies := c.Request().Header.Get("Cookie"); cookies != "" {
		req.Header.Set("Cookie", cookies)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return apperror.NewBadGateway("Authentication service is unreachable.", err)
	}
	defer resp.Body.Close()

	for _, sc := range resp.Header.Values("Set-Cookie") {
		c.Response().Header().Add("Set-Cookie", sc)
	}

	contentType := resp.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().WriteHeader(resp.StatusCode)
	_, err = io.Copy(c.Response(), resp.Body)
	return err
}
