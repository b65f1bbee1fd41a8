// Package scopes tracks the cumulative set of scopes granted per provider,
// persisted across runs so re-consent flows request the full union.
package scopes

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"

	"github.com/lanternhq/authkit/pkg/oauth"
)

const stateFileName = "lantern/granted_scopes.json"

// Manager persists the granted-scope set per provider. All methods are
// safe for concurrent use.
type Manager struct {
	filePath string

	mu      sync.Mutex
	granted map[string][]string
}

// NewManager loads (or initializes) the scope state at the given path.
func NewManager(path string) (*Manager, error) {
	m := &Manager{
		filePath: path,
		granted:  make(map[string][]string),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewDefaultManager places the scope state under the user's state directory.
func NewDefaultManager() (*Manager, error) {
	path, err := xdg.StateFile(stateFileName)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve scope state path: %w", err)
	}
	return NewManager(path)
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read scope state: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &m.granted); err != nil {
		return fmt.Errorf("failed to decode scope state: %w", err)
	}
	return nil
}

// flush writes the state atomically via a temp file and rename.
func (m *Manager) flush() error {
	data, err := json.MarshalIndent(m.granted, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scope state: %w", err)
	}

	dir := filepath.Dir(m.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create scope state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".scopes-*")
	if err != nil {
		return fmt.Errorf("failed to create temp scope state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write scope state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close scope state: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.filePath); err != nil {
		return fmt.Errorf("failed to replace scope state: %w", err)
	}
	return nil
}

// Grant merges the scopes into the provider's persisted set and returns
// the resulting union.
func (m *Manager) Grant(provider string, scopes ...string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	merged := oauth.MergeScopes(m.granted[provider], scopes)
	m.granted[provider] = merged
	if err := m.flush(); err != nil {
		return merged, err
	}
	return merged, nil
}

// Granted returns the persisted granted-scope set for the provider.
func (m *Manager) Granted(provider string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	scopes := m.granted[provider]
	out := make([]string, len(scopes))
	copy(out, scopes)
	return out
}

// Reset drops the persisted set for the provider. Logout keeps scope
// history by default; Reset is for explicitly forgetting it.
func (m *Manager) Reset(provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.granted[provider]; !ok {
		return nil
	}
	delete(m.granted, provider)
	return m.flush()
}
