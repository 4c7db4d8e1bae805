package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Carl26-1/fitforge-email-auth/internal/apperror"
)

// FileStore keeps all users in a single JSON file. Writes go to a temp file
// that is renamed over the real path, so a dropped connection mid-write
// never leaves a corrupt store. A process-level mutex serializes writers;
// this backend is only safe for single-instance deployments.
type FileStore struct {
	path string

	mu    sync.Mutex
	ready sync.Once
}

// NewFileStore creates a file-backed credential store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// EnsureReady creates the parent directory and an empty collection file if
// they do not exist yet. Runs its work once per process.
func (s *FileStore) EnsureReady(ctx context.Context) error {
	var err error
	s.ready.Do(func() {
		if mkErr := os.MkdirAll(filepath.Dir(s.path), 0o755); mkErr != nil {
			err = fmt.Errorf("creating store directory: %w", mkErr)
			return
		}
		if _, statErr := os.Stat(s.path); os.IsNotExist(statErr) {
			if wrErr := os.WriteFile(s.path, []byte("[]"), 0o600); wrErr != nil {
				err = fmt.Errorf("creating store file: %w", wrErr)
			}
		}
	})
	return err
}

// FindByEmail scans the collection for the normalized email.
func (s *FileStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email == email {
			user := users[i]
			return &user, nil
		}
	}
	return nil, apperror.NewNotFound("account not found")
}

// InsertIfAbsent appends the user unless the email is already present. The
// duplicate check and the write happen under one lock, and the write is an
// atomic rename, so concurrent requests within this process cannot create
// duplicate emails.
func (s *FileStore) InsertIfAbsent(ctx context.Context, user *User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.read()
	if err != nil {
		return false, err
	}
	for i := range users {
		if users[i].Email == user.Email {
			return false, nil
		}
	}

	users = append(users, *user)
	if err := s.write(users); err != nil {
		return false, err
	}
	return true, nil
}

// read loads the whole collection. A missing or unparseable file yields an
// empty collection rather than an error, matching a freshly created store.
func (s *FileStore) read() ([]User, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading user store: %w", err)
	}

	var users []User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, nil
	}
	return users, nil
}

// write persists the collection with the temp-file-then-rename discipline.
func (s *FileStore) write(users []User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding user store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing temp store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}
