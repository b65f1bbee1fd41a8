// SPDX-FileCopyrightText: Copyright 2025 Lantern Labs, Inc.
// SPDX-License-Identifier: Apache-2.0

package keyring

import "sync"

// MockProvider is an in-memory Provider for tests. It optionally fails
// every operation to exercise StorageError paths.
type MockProvider struct {
	mu      sync.RWMutex
	secrets map[string]map[string]string

	// FailWith, when non-nil, is returned by every mutating and reading
	// operation.
	FailWith error
}

// NewMockProvider creates an empty in-memory keyring.
func NewMockProvider() *MockProvider {
	return &MockProvider{secrets: make(map[string]map[string]string)}
}

// Set stores a key-value pair in the mock keyring.
func (m *MockProvider) Set(service, key, value string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.secrets[service] == nil {
		m.secrets[service] = make(map[string]string)
	}
	m.secrets[service][key] = value
	return nil
}

// Get retrieves a value from the mock keyring.
func (m *MockProvider) Get(service, key string) (string, error) {
	if m.FailWith != nil {
		return "", m.FailWith
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.secrets[service][key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Delete removes a specific key from the mock keyring.
func (m *MockProvider) Delete(service, key string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets[service], key)
	return nil
}

// DeleteAll removes all keys for a service.
func (m *MockProvider) DeleteAll(service string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, service)
	return nil
}

// IsAvailable always reports true unless failure injection is active.
func (m *MockProvider) IsAvailable() bool {
	return m.FailWith == nil
}

// Name returns the backend name.
func (*MockProvider) Name() string {
	return "mock"
}
