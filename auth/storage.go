package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Session is the logged-in user as persisted between runs
type Session struct {
	Token     string `json:"token"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	UserID    string `json:"user_id,omitempty"`
	ExpiresAt int64  `json:"expires_at"`
}

// Valid reports a token that has not expired at now
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	return s.ExpiresAt == 0 || now.Unix() < s.ExpiresAt
}

// DisplayName is the name or, failing that, the email
func (s *Session) DisplayName() string {
	if s == nil {
		return ""
	}
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}

// Store keeps one session in a JSON file readable only by the owner
type Store struct {
	path string
}

// NewStore creates a store at path. Empty means ~/.tradeassist/session.json.
func NewStore(path string) *Store {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.Getenv("HOME")
		}
		path = filepath.Join(home, ".tradeassist", "session.json")
	}
	return &Store{path: path}
}

// Path returns the session file location
func (s *Store) Path() string { return s.path }

// Save writes the session
func (s *Store) Save(session Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.Wrap(err, "failed to create session directory")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session")
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write session file")
	}
	return nil
}

// Load returns nil, nil when no session was saved
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read session file")
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal session")
	}
	return &session, nil
}

// Clear removes the session file if present
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove session file")
	}
	return nil
}
