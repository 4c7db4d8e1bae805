package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carl26-1/fitforge-email-auth/internal/auth"
	"github.com/Carl26-1/fitforge-email-auth/internal/config"
)

// stubMail is a configured mail sender that records sends.
type stubMail struct {
	sendCount int
}

func (m *stubMail) SendCode(ctx context.Context, to, code string) error {
	m.sendCount++
	return nil
}

func (m *stubMail) IsConfigured() bool { return true }

// newTestApp builds a fully wired application over a temp file store.
func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{
			Env:           "test",
			Port:          0,
			SessionSecret: "test-secret",
		}
	}

	store := auth.NewFileStore(filepath.Join(t.TempDir(), "users.json"))
	if err := store.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady failed: %v", err)
	}

	application := New(cfg, store, auth.NewMemoryLimiter(), &stubMail{})
	application.RegisterRoutes()
	return application
}

func do(app *App, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, nil)
	rec := do(app, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["ok"] != true {
		t.Errorf(`expected {"ok":true} body, got %s`, rec.Body.String())
	}
}

func TestRegisterLoginSessionLogoutFlow(t *testing.T) {
	app := newTestApp(t, nil)

	// Register.
	rec := do(app, http.MethodPost, "/api/auth/register",
		`{"email":"alice@example.com","password":"password123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["emailMasked"] != "a***e@example.com" {
		t.Errorf("unexpected emailMasked %v", body["emailMasked"])
	}

	var session *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == auth.SessionCookieName {
			session = cookie
		}
	}
	if session == nil || session.Value == "" {
		t.Fatal("expected session cookie after register")
	}

	// Duplicate register.
	rec = do(app, http.MethodPost, "/api/auth/register",
		`{"email":"alice@example.com","password":"password123"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register: expected 409, got %d", rec.Code)
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["ok"] != false || body["message"] == nil {
		t.Errorf("expected error body with message, got %v", body)
	}

	// Login with wrong password.
	rec = do(app, http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"wrong-password"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", rec.Code)
	}

	// Session with the register cookie.
	rec = do(app, http.MethodGet, "/api/auth/session", "", session)
	if rec.Code != http.StatusOK {
		t.Fatalf("session: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["loggedIn"] != true {
		t.Errorf("expected loggedIn:true, got %v", body)
	}

	// Session without a cookie.
	rec = do(app, http.MethodGet, "/api/auth/session", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous session: expected 401, got %d", rec.Code)
	}

	// Logout clears the cookie.
	rec = do(app, http.MethodPost, "/api/auth/logout", "")
	if rec.Code != http.StatusOK {
		t.Errorf("logout: expected 200, got %d", rec.Code)
	}
}

func TestSendCodeRateLimitBody(t *testing.T) {
	app := newTestApp(t, nil)

	rec := do(app, http.MethodPost, "/api/auth/send-code", `{"email":"new@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("first send: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Immediately again: cooldown rejection with the retry hint in body and header.
	rec = do(app, http.MethodPost, "/api/auth/send-code", `{"email":"new@example.com"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["ok"] != false {
		t.Errorf("expected ok:false, got %v", body)
	}
	if _, ok := body["retryAfterSec"].(float64); !ok {
		t.Errorf("expected retryAfterSec in body, got %v", body)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestUnknownRouteIsJSON(t *testing.T) {
	app := newTestApp(t, nil)

	rec := do(app, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("404 body is not JSON: %s", rec.Body.String())
	}
	if body["ok"] != false {
		t.Errorf("expected ok:false, got %v", body)
	}
}

func TestCORSAllowListedOrigin(t *testing.T) {
	cfg := &config.Config{
		Env:           "test",
		SessionSecret: "test-secret",
		CORSOrigins:   []string{"https://fitforge.app"},
	}
	app := newTestApp(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://fitforge.app")
	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://fitforge.app" {
		t.Errorf("expected allow-origin echo, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials to be allowed for listed origin")
	}

	// Unlisted origins get no CORS headers.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("expected no CORS headers for unlisted origin")
	}
}

func TestProxyModeRelaysAuthRoutes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"loggedIn":true,"emailMasked":"u***m@example.com"}`))
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Env:              "test",
		SessionSecret:    "test-secret",
		AuthProxyBaseURL: upstream.URL,
	}
	application := New(cfg, nil, auth.NewMemoryLimiter(), &stubMail{})
	application.RegisterRoutes()

	rec := do(application, http.MethodGet, "/api/auth/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from upstream, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "u***m@example.com") {
		t.Errorf("expected upstream body, got %s", rec.Body.String())
	}

	// Send-code stays local even in proxy mode: rate limiting applies.
	rec = do(application, http.MethodPost, "/api/auth/send-code", `{"email":"new@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("first send: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(application, http.MethodPost, "/api/auth/send-code", `{"email":"new@example.com"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected local 429 in proxy mode, got %d", rec.Code)
	}
}
