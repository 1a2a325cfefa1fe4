// Package session holds the process-wide client state: the bearer token
// and a couple of UI flags, persisted to a small JSON file so the session
// survives a restart. It is the only durable client-side state.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// state is the persisted shape.
type state struct {
	Token                string `json:"token,omitempty"`
	AdvancedMode         bool   `json:"advanced_mode,omitempty"`
	WalkthroughCompleted bool   `json:"walkthrough_completed,omitempty"`
}

// Store is a file-backed session store. Construct with Open and inject it
// where needed; it is not an ambient singleton.
type Store struct {
	mu   sync.Mutex
	path string
	st   state
}

// Open loads the session file at path, tolerating a missing file
// (fresh session). Pass "" for an in-memory, non-persisted store.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if err := json.Unmarshal(data, &s.st); err != nil {
		// A corrupt session file is discarded, not fatal.
		s.st = state{}
	}
	return s, nil
}

// DefaultPath returns the per-user session file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "flowdeck", "session.json")
}

func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.Marshal(s.st)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Token returns the stored bearer token, or "".
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Token
}

// SetToken persists the bearer token (login).
func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Token = token
	return s.save()
}

// ClearToken removes the bearer token (logout).
func (s *Store) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Token = ""
	return s.save()
}

// AdvancedMode reports the raw-JSON inspector toggle.
func (s *Store) AdvancedMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.AdvancedMode
}

// SetAdvancedMode persists the inspector mode toggle.
func (s *Store) SetAdvancedMode(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.AdvancedMode = on
	return s.save()
}

// WalkthroughCompleted reports whether the onboarding walkthrough ran.
func (s *Store) WalkthroughCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.WalkthroughCompleted
}

// SetWalkthroughCompleted persists the walkthrough flag.
func (s *Store) SetWalkthroughCompleted(done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.WalkthroughCompleted = done
	return s.save()
}
