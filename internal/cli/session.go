package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Session is the identity the akv client presents to the API gateway,
// pinned to the API it was created against.
type Session struct {
	UserID        string    `json:"user_id"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	APIBaseURL    string    `json:"api_base_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s Session) normalize() Session {
	s.UserID = strings.TrimSpace(s.UserID)
	s.WalletAddress = strings.TrimSpace(s.WalletAddress)
	s.APIBaseURL = strings.TrimRight(strings.TrimSpace(s.APIBaseURL), "/")
	return s
}

func (s Session) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return errors.New("no user id found in session")
	}
	return nil
}

// BaseURL is the API the session was created against, or fallback for
// sessions that never recorded one.
func (s Session) BaseURL(fallback string) string {
	if s.APIBaseURL != "" {
		return s.APIBaseURL
	}
	return strings.TrimRight(strings.TrimSpace(fallback), "/")
}

// SessionPath is ~/.akv/session.json. The directory is created on demand.
func SessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".akv")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

// SaveSession replaces the session file atomically. A zero CreatedAt is
// stamped with the current time.
func SaveSession(s Session) error {
	s = s.normalize()
	if err := s.Validate(); err != nil {
		return err
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	path, err := SessionPath()
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "session-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func LoadSession() (Session, error) {
	path, err := SessionPath()
	if err != nil {
		return Session{}, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return Session{}, fmt.Errorf("decode %s: %w", path, err)
	}
	s = s.normalize()
	return s, s.Validate()
}

func ClearSession() error {
	path, err := SessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
