package auth

import (
	"context"
)

// UserStore defines the credential-store contract. Three interchangeable
// backends (JSON file, Postgres, MySQL) satisfy identical semantics; the
// backend is selected by configuration at startup, never by conditionals in
// handler logic.
type UserStore interface {
	// EnsureReady creates the backing structure (directory/file or table)
	// if needed. Idempotent; implementations cache readiness so the work
	// happens once per process lifetime.
	EnsureReady(ctx context.Context) error

	// FindByEmail returns the user with the given normalized email, or
	// apperror.NotFound when no such account exists.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// InsertIfAbsent persists the user unless the email is already taken,
	// in which case it returns false with no error. This conditional
	// insert is the store's race-safety primitive -- callers must not
	// implement uniqueness with a separate read-then-write.
	InsertIfAbsent(ctx context.Context, user *User) (bool, error)
}
