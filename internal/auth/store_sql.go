package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/Carl26-1/fitforge-email-auth/internal/apperror"
	"github.com/Carl26-1/fitforge-email-auth/internal/database"
)

// SQLStore is the relational credential store. The email column carries a
// uniqueness constraint and insertion uses a conflict-ignoring statement, so
// the database -- not application logic -- guarantees no duplicate emails
// even across processes and instances.
type SQLStore struct {
	db      *sql.DB
	dialect database.Dialect

	ready    sync.Once
	readyErr error
}

// NewSQLStore creates a credential store on the given connection pool.
func NewSQLStore(db *sql.DB, dialect database.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// EnsureReady lazily creates the users table. The DDL is idempotent and the
// result is cached, so the statement runs once per process lifetime rather
// than on every request.
func (s *SQLStore) EnsureReady(ctx context.Context) error {
	s.ready.Do(func() {
		var ddl string
		switch s.dialect {
		case database.DialectMySQL:
			ddl = `CREATE TABLE IF NOT EXISTS users (
				id VARCHAR(64) PRIMARY KEY,
				email VARCHAR(255) NOT NULL UNIQUE,
				display_name VARCHAR(255) NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL,
				password_salt TEXT NOT NULL,
				created_at DATETIME NOT NULL
			)`
		default:
			ddl = `CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT UNIQUE NOT NULL,
				display_name TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL,
				password_salt TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`
		}
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			s.readyErr = fmt.Errorf("creating users table: %w", err)
		}
	})
	return s.readyErr
}

// FindByEmail retrieves a user by normalized email address.
// Returns apperror.NotFound if no account exists with this email.
func (s *SQLStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := s.rebind(`SELECT id, email, display_name, password_hash, password_salt, created_at
	                   FROM users WHERE email = ? LIMIT 1`)

	user := &User{}
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.PasswordSalt,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}

	return user, nil
}

// InsertIfAbsent inserts the user row, no-oping when the email uniqueness
// constraint would be violated. Returns false when the row was not inserted.
func (s *SQLStore) InsertIfAbsent(ctx context.Context, user *User) (bool, error) {
	var query string
	switch s.dialect {
	case database.DialectMySQL:
		query = `INSERT IGNORE INTO users (id, email, display_name, password_hash, password_salt, created_at)
		         VALUES (?, ?, ?, ?, ?, ?)`
	default:
		query = `INSERT INTO users (id, email, display_name, password_hash, password_salt, created_at)
		         VALUES ($1, $2, $3, $4, $5, $6)
		         ON CONFLICT (email) DO NOTHING`
	}

	result, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.PasswordSalt,
		user.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting user: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading insert result: %w", err)
	}
	return n > 0, nil
}

// rebind rewrites ?-style placeholders to $1..$n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect == database.DialectMySQL {
		return query
	}
	var out []byte
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
