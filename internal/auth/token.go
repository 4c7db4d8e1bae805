package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token lifetimes. Session tokens are long-lived bearer credentials;
// challenge tokens only need to outlive one email round-trip.
const (
	SessionTTL   = 7 * 24 * time.Hour
	ChallengeTTL = 10 * time.Minute
)

// purposeRegister is the only challenge purpose currently issued.
const purposeRegister = "register"

// SessionClaims is the payload of a session token. The token is
// self-contained: no server-side session record exists, expiry is the only
// termination mechanism besides the client discarding the cookie.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"email"`
}

// ChallengeClaims is the payload of a verification-code challenge token.
// CodeHash binds the emailed code to this challenge; the plaintext code is
// never stored server-side.
type ChallengeClaims struct {
	jwt.RegisteredClaims
	Purpose  string `json:"purpose"`
	Email    string `json:"email"`
	Nonce    string `json:"nonce"`
	CodeHash string `json:"codeHash"`
}

// TokenCodec issues and verifies the HMAC-signed tokens carried in cookies.
// The signing secret is process-wide configuration.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec creates a codec signing with the given secret.
func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), now: time.Now}
}

// IssueSession signs a session token for the user, valid for SessionTTL.
func (c *TokenCodec) IssueSession(user *User) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
		UserID: user.ID,
		Email:  user.Email,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// VerifySession validates a session token's signature and expiry and
// returns its claims. Any tampering, wrong algorithm, or expired token
// yields an error; unsigned claims are never trusted. Requiring the uid
// claim keeps challenge tokens (same secret, same method, but no uid)
// from passing as sessions.
func (c *TokenCodec) VerifySession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing session token: %w", err)
	}
	if !token.Valid || claims.Email == "" || claims.UserID == "" {
		return nil, fmt.Errorf("session token is invalid")
	}
	return claims, nil
}

// IssueChallenge signs a register-purpose challenge token binding the email
// to the hashed verification code.
func (c *TokenCodec) IssueChallenge(email, nonce, codeHash string) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ChallengeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ChallengeTTL)),
		},
		Purpose:  purposeRegister,
		Email:    email,
		Nonce:    nonce,
		CodeHash: codeHash,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing challenge token: %w", err)
	}
	return signed, nil
}

// VerifyChallenge validates a challenge token and checks its purpose.
func (c *TokenCodec) VerifyChallenge(tokenString string) (*ChallengeClaims, error) {
	claims := &ChallengeClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing challenge token: %w", err)
	}
	if !token.Valid || claims.Purpose != purposeRegister {
		return nil, fmt.Errorf("challenge token is invalid")
	}
	return claims, nil
}

// HashCode computes the one-way digest binding (email, code, nonce) to this
// server's secret. Stored in the challenge token instead of the code itself.
func (c *TokenCodec) HashCode(email, code, nonce string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email) + ":" + code + ":" + nonce + ":" + string(c.secret)))
	return hex.EncodeToString(sum[:])
}

// keyFunc returns the HMAC secret for token verification.
func (c *TokenCodec) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
	}
	return c.secret, nil
}
