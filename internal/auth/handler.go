package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Carl26-1/fitforge-email-auth/internal/apperror"
)

// Handler exposes the auth service over HTTP. All endpoints speak JSON; the
// session and challenge tokens travel in http-only cookies, never in bodies.
type Handler struct {
	service AuthService
	cookies CookiePolicy
}

// NewHandler creates a new auth handler.
func NewHandler(service AuthService, cookies CookiePolicy) *Handler {
	return &Handler{service: service, cookies: cookies}
}

// Register creates an account and logs the new user in.
// POST /api/auth/register
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("Request body must be valid JSON.")
	}

	token, profile, err := h.service.Register(c.Request().Context(), RegisterInput{
		Email:          req.Email,
		Password:       req.Password,
		DisplayName:    req.DisplayName,
		Code:           req.Code,
		ChallengeToken: readCookie(c, ChallengeCookieName),
	})
	if err != nil {
		return err
	}

	c.SetCookie(h.cookies.Session(token))
	c.SetCookie(h.cookies.ClearChallenge())
	return c.JSON(http.StatusOK, map[string]any{
		"ok":           true,
		"emailMasked":  profile.EmailMasked,
		"displayLabel": profile.DisplayLabel,
	})
}

// Login authenticates an existing account.
// POST /api/auth/login
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("Request body must be valid JSON.")
	}

	token, profile, err := h.service.Login(c.Request().Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	c.SetCookie(h.cookies.Session(token))
	return c.JSON(http.StatusOK, map[string]any{
		"ok":           true,
		"emailMasked":  profile.EmailMasked,
		"displayLabel": profile.DisplayLabel,
	})
}

// Session reports whether the caller holds a valid session. Failures answer
// 401 with loggedIn:false rather than an error body, so clients can use one
// code path for "who am I".
// GET /api/auth/session
func (h *Handler) Session(c echo.Context) error {
	profile, err := h.service.Session(c.Request().Context(), readCookie(c, SessionCookieName))
	if err != nil {
		if appErr, ok := err.(*apperror.AppError); ok && appErr.Code == http.StatusUnauthorized {
			return c.JSON(http.StatusUnauthorized, map[string]any{
				"ok":       false,
				"loggedIn": false,
			})
		}
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"ok":           true,
		"loggedIn":     true,
		"emailMasked":  profile.EmailMasked,
		"displayLabel": profile.DisplayLabel,
	})
}

// Logout clears the session cookie. Idempotent; there is no server-side
// session state to invalidate.
// POST /api/auth/logout
func (h *Handler) Logout(c echo.Context) error {
	c.SetCookie(h.cookies.ClearSession())
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

// SendCode issues a verification code for an unregistered address and sets
// the challenge cookie the client must return at registration.
// POST /api/auth/send-code
func (h *Handler) SendCode(c echo.Context) error {
	return h.sendCode(c, false)
}

// sendCode runs the code flow; skipExistsCheck is set by the proxy strategy,
// where the local store cannot see upstream registrations.
func (h *Handler) sendCode(c echo.Context, skipExistsCheck bool) error {
	var req SendCodeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("Request body must be valid JSON.")
	}

	issue, err := h.service.SendCode(c.Request().Context(), SendCodeInput{
		Email:           req.Email,
		IP:              c.RealIP(),
		SkipExistsCheck: skipExistsCheck,
	})
	if err != nil {
		return err
	}

	c.SetCookie(h.cookies.Challenge(issue.ChallengeToken))

	body := map[string]any{
		"ok":           true,
		"emailMasked":  issue.EmailMasked,
		"cooldownSec":  issue.CooldownSec,
		"expiresInSec": issue.ExpiresInSec,
		"delivery":     issue.Delivery,
	}
	if issue.Delivery == DeliveryOnscreen {
		body["debugCode"] = issue.DebugCode
		body["warning"] = issue.Warning
	}
	return c.JSON(http.StatusOK, body)
}
