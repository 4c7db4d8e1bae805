// Package auth handles account registration, login, session management, and
// email verification codes for FitForge. Sessions are stateless HMAC-signed
// bearer tokens carried in an http-only cookie; credentials live in a
// pluggable store (JSON file, Postgres, or MySQL).
//
// This is the core of the backend -- always enabled, cannot be disabled.
package auth

import (
	"regexp"
	"strings"
	"time"
)

// maxDisplayNameLen caps the user-supplied display name.
const maxDisplayNameLen = 30

// User represents a registered FitForge account. This is the domain model
// used throughout the application and persisted by the credential stores.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"passwordHash"`
	PasswordSalt string    `json:"passwordSalt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// --- Request DTOs (bound from HTTP requests) ---

// RegisterRequest holds the registration payload. Code is the optional
// email verification code matching a previously issued challenge cookie.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Code        string `json:"code"`
}

// LoginRequest holds the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SendCodeRequest holds the verification-code request payload.
type SendCodeRequest struct {
	Email string `json:"email"`
}

// --- Responses ---

// Profile is the client-visible identity summary. The raw email address is
// never returned, only its masked form.
type Profile struct {
	EmailMasked  string
	DisplayLabel string
}

// ProfileFor builds the masked profile for a user.
func ProfileFor(user *User) Profile {
	return Profile{
		EmailMasked:  MaskEmail(user.Email),
		DisplayLabel: DisplayLabel(user),
	}
}

// --- Email helpers ---

// emailPattern is a deliberately loose shape check: something@something.tld
// with no whitespace. Deliverability is proven by the code flow, not regex.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// Every lookup and every stored record uses the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the (already normalized) address looks like an
// email address.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// MaskEmail hides the middle of the local part: "alice@example.com" becomes
// "a***e@example.com". Addresses with a local part of one character (or no
// "@" at all) are returned unchanged rather than over-masked.
func MaskEmail(email string) string {
	value := NormalizeEmail(email)
	at := strings.Index(value, "@")
	if at <= 1 {
		if value == "" {
			return "unknown"
		}
		return value
	}
	name := value[:at]
	domain := value[at:]
	return name[:1] + "***" + name[len(name)-1:] + domain
}

// DisplayLabel renders the label shown in the UI: the display name with the
// masked email in parentheses, or just the masked email.
func DisplayLabel(user *User) string {
	masked := MaskEmail(user.Email)
	if user.DisplayName != "" {
		return user.DisplayName + " (" + masked + ")"
	}
	return masked
}

// trimDisplayName normalizes a user-supplied display name: surrounding
// whitespace removed, capped at maxDisplayNameLen characters. The cap
// counts runes so a multibyte name is never cut into invalid UTF-8.
func trimDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > maxDisplayNameLen {
		name = string(runes[:maxDisplayNameLen])
	}
	return name
}
