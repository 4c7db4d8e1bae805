package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/Carl26-1/fitforge-email-auth/internal/apperror"
)

// Generic messages. Login failures use one indistinguishable message for
// unknown emails and wrong passwords so responses cannot be used to probe
// which addresses are registered.
const (
	msgInvalidEmail       = "Email address format is invalid."
	msgInvalidCredentials = "Incorrect email or password."
	msgAlreadyRegistered  = "This email is already registered. Please sign in."
	msgInvalidCode        = "Verification code is invalid or expired."
	msgMailUnconfigured   = "Email delivery is not configured. Set EMAIL_FROM and RESEND_API_KEY."
	msgMailFailed         = "Could not send the verification code. Please try again later."
)

// Delivery markers for the send-code response. "onscreen" flags the
// insecure development fallback where the code is returned in the body.
const (
	DeliveryEmail    = "email"
	DeliveryOnscreen = "onscreen"
)

// MailSender delivers verification codes out-of-band. Implemented by the
// mailer package; mocked in tests.
type MailSender interface {
	SendCode(ctx context.Context, to, code string) error
	IsConfigured() bool
}

// AuthService defines the business logic contract for authentication.
// Handlers call these methods -- they never touch the store directly.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (string, Profile, error)
	Login(ctx context.Context, input LoginInput) (string, Profile, error)
	Session(ctx context.Context, token string) (Profile, error)
	SendCode(ctx context.Context, input SendCodeInput) (*CodeIssue, error)
}

// RegisterInput is the validated input for creating an account.
// ChallengeToken is the raw challenge cookie value, if the client holds one.
type RegisterInput struct {
	Email          string
	Password       string
	DisplayName    string
	Code           string
	ChallengeToken string
}

// LoginInput is the validated input for authenticating an account.
type LoginInput struct {
	Email    string
	Password string
}

// SendCodeInput identifies the target address and the requesting client.
type SendCodeInput struct {
	Email string
	IP    string
	// SkipExistsCheck is set in proxy deployments where the local store
	// cannot answer whether the email is registered upstream.
	SkipExistsCheck bool
}

// CodeIssue is the outcome of a successful send-code request.
type CodeIssue struct {
	ChallengeToken string
	EmailMasked    string
	CooldownSec    int
	ExpiresInSec   int
	Delivery       string
	// DebugCode and Warning are only set on the onscreen fallback path.
	DebugCode string
	Warning   string
}

// authService implements AuthService on top of a credential store, the
// token codec, the code limiter, and a mail sender.
type authService struct {
	store   UserStore
	codec   *TokenCodec
	limiter CodeLimiter
	mail    MailSender

	// allowUnsafeFallback returns codes in the response body when mail is
	// unconfigured. Development-only escape hatch.
	allowUnsafeFallback bool
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(store UserStore, codec *TokenCodec, limiter CodeLimiter, mail MailSender, allowUnsafeFallback bool) AuthService {
	return &authService{
		store:               store,
		codec:               codec,
		limiter:             limiter,
		mail:                mail,
		allowUnsafeFallback: allowUnsafeFallback,
	}
}

// Register creates a new account. It validates the email shape and password
// policy, optionally consumes a verification challenge, hashes the password,
// and relies on the store's conditional insert for duplicate protection.
func (s *authService) Register(ctx context.Context, input RegisterInput) (string, Profile, error) {
	email := NormalizeEmail(input.Email)
	if !ValidEmail(email) {
		return "", Profile{}, apperror.NewBadRequest(msgInvalidEmail)
	}
	if msg := ValidatePassword(input.Password); msg != "" {
		return "", Profile{}, apperror.NewBadRequest(msg)
	}

	if input.Code != "" {
		if err := s.consumeChallenge(email, input.Code, input.ChallengeToken); err != nil {
			return "", Profile{}, err
		}
	}

	// Cheap pre-check before the expensive hash. The conditional insert
	// below still catches races that slip past it.
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return "", Profile{}, apperror.NewConflict(msgAlreadyRegistered)
	} else if !isNotFound(err) {
		return "", Profile{}, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}

	salt, hash, err := HashPassword(input.Password)
	if err != nil {
		return "", Profile{}, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  trimDisplayName(input.DisplayName),
		PasswordHash: hash,
		PasswordSalt: salt,
		CreatedAt:    time.Now().UTC(),
	}

	inserted, err := s.store.InsertIfAbsent(ctx, user)
	if err != nil {
		return "", Profile{}, apperror.NewInternal(fmt.Errorf("creating account: %w", err))
	}
	if !inserted {
		// Lost a duplicate-email race; same outcome as the pre-check.
		return "", Profile{}, apperror.NewConflict(msgAlreadyRegistered)
	}

	token, err := s.codec.IssueSession(user)
	if err != nil {
		return "", Profile{}, apperror.NewInternal(fmt.Errorf("issuing session: %w", err))
	}

	slog.Info("account registered",
		slog.String("user_id", user.ID),
		slog.String("email", MaskEmail(user.Email)),
	)

	return token, ProfileFor(user), nil
}

// Login authenticates by email and password and issues a session token.
func (s *authService) Login(ctx context.Context, input LoginInput) (string, Profile, error) {
	email := NormalizeEmail(input.Email)
	if !ValidEmail(email) {
		return "", Profile{}, apperror.NewBadRequest(msgInvalidEmail)
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return "", Profile{}, apperror.NewUnauthorized(msgInvalidCredentials)
		}
		return "", Profile{}, apperror.NewInternal(fmt.Errorf("finding account: %w", err))
	}

	if !VerifyPassword(input.Password, user.PasswordHash, user.PasswordSalt) {
		return "", Profile{}, apperror.NewUnauthorized(msgInvalidCredentials)
	}

	token, err := s.codec.IssueSession(user)
	if err != nil {
		return "", Profile{}, apperror.NewInternal(fmt.Errorf("issuing session: %w", err))
	}

	slog.Info("account logged in",
		slog.String("user_id", user.ID),
		slog.String("email", MaskEmail(user.Email)),
	)

	return token, ProfileFor(user), nil
}

// Session verifies a session token and re-resolves the account, so tokens
// for since-deleted accounts stop working before their natural expiry.
func (s *authService) Session(ctx context.Context, token string) (Profile, error) {
	if token == "" {
		return Profile{}, apperror.NewUnauthorized("not logged in")
	}

	claims, err := s.codec.VerifySession(token)
	if err != nil {
		return Profile{}, apperror.NewUnauthorized("session expired or invalid")
	}

	user, err := s.store.FindByEmail(ctx, NormalizeEmail(claims.Email))
	if err != nil {
		if isNotFound(err) {
			return Profile{}, apperror.NewUnauthorized("session expired or invalid")
		}
		return Profile{}, apperror.NewInternal(fmt.Errorf("finding account: %w", err))
	}

	return ProfileFor(user), nil
}

// SendCode runs the verification-code flow: duplicate check, the three
// rate-limit guards, code generation, challenge issuance, and delivery.
func (s *authService) SendCode(ctx context.Context, input SendCodeInput) (*CodeIssue, error) {
	email := NormalizeEmail(input.Email)
	if !ValidEmail(email) {
		return nil, apperror.NewBadRequest(msgInvalidEmail)
	}

	if !input.SkipExistsCheck {
		if _, err := s.store.FindByEmail(ctx, email); err == nil {
			return nil, apperror.NewConflict(msgAlreadyRegistered)
		} else if !isNotFound(err) {
			return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
		}
	}

	decision, err := s.limiter.Reserve(ctx, email, input.IP)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("reserving send slot: %w", err))
	}
	if !decision.OK {
		return nil, apperror.NewTooManyRequests(
			fmt.Sprintf("Too many requests. Try again in %d seconds.", decision.RetryAfter),
			decision.RetryAfter,
		)
	}

	code, err := randomCode()
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("generating code: %w", err))
	}
	nonce, err := randomNonce()
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("generating nonce: %w", err))
	}

	challenge, err := s.codec.IssueChallenge(email, nonce, s.codec.HashCode(email, code, nonce))
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("issuing challenge: %w", err))
	}

	issue := &CodeIssue{
		ChallengeToken: challenge,
		EmailMasked:    MaskEmail(email),
		CooldownSec:    cooldownSeconds,
		ExpiresInSec:   int(ChallengeTTL / time.Second),
		Delivery:       DeliveryEmail,
	}

	if s.mail != nil && s.mail.IsConfigured() {
		if err := s.mail.SendCode(ctx, email, code); err != nil {
			return nil, apperror.NewBadGateway(msgMailFailed, err)
		}
	} else if !s.allowUnsafeFallback {
		return nil, apperror.NewServiceUnavailable(msgMailUnconfigured)
	} else {
		// Development-only: no provider, hand the code back on screen.
		issue.Delivery = DeliveryOnscreen
		issue.DebugCode = code
		issue.Warning = "Code delivery is in temporary onscreen mode; the code is only shown here."
	}

	if err := s.limiter.MarkSent(ctx, email); err != nil {
		slog.Warn("failed to record cooldown",
			slog.String("email", MaskEmail(email)),
			slog.Any("error", err),
		)
	}

	slog.Info("verification code issued",
		slog.String("email", MaskEmail(email)),
		slog.String("delivery", issue.Delivery),
	)

	return issue, nil
}

// consumeChallenge checks a submitted code against the challenge cookie:
// the token must verify, target the same email, and the recomputed digest
// must match in constant time.
func (s *authService) consumeChallenge(email, code, challengeToken string) error {
	if challengeToken == "" {
		return apperror.NewBadRequest(msgInvalidCode)
	}
	claims, err := s.codec.VerifyChallenge(challengeToken)
	if err != nil || claims.Email != email {
		return apperror.NewBadRequest(msgInvalidCode)
	}
	computed := s.codec.HashCode(email, code, claims.Nonce)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(claims.CodeHash)) != 1 {
		return apperror.NewBadRequest(msgInvalidCode)
	}
	return nil
}

// randomCode draws a 6-digit zero-padded code from crypto/rand.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// randomNonce draws an 8-byte hex nonce from crypto/rand.
func randomNonce() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// isNotFound checks whether the error is the store's not-found outcome.
func isNotFound(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code == 404
}
