// SPDX-FileCopyrightText: Copyright 2025 Lantern Labs, Inc.
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"errors"
	"fmt"

	gokeyring "github.com/zalando/go-keyring"
)

// systemProvider stores secrets in the platform credential store (macOS
// Keychain, Windows Credential Manager, Secret Service on Linux) via
// zalando/go-keyring.
type systemProvider struct{}

// NewSystemProvider returns the OS credential store backend.
func NewSystemProvider() Provider {
	return &systemProvider{}
}

func (*systemProvider) Set(service, key, value string) error {
	if err := gokeyring.Set(service, key, value); err != nil {
		return fmt.Errorf("failed to store key %q in system keyring: %w", key, err)
	}
	return nil
}

func (*systemProvider) Get(service, key string) (string, error) {
	value, err := gokeyring.Get(service, key)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read key %q from system keyring: %w", key, err)
	}
	return value, nil
}

func (*systemProvider) Delete(service, key string) error {
	err := gokeyring.Delete(service, key)
	if err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
		return fmt.Errorf("failed to delete key %q from system keyring: %w", key, err)
	}
	return nil
}

func (*systemProvider) DeleteAll(service string) error {
	err := gokeyring.DeleteAll(service)
	if err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
		return fmt.Errorf("failed to clear system keyring service %q: %w", service, err)
	}
	return nil
}

func (p *systemProvider) IsAvailable() bool {
	testKey := GenerateUniqueTestKey()
	if err := p.Set("lantern-availability-check", testKey, "test"); err != nil {
		return false
	}
	_ = p.Delete("lantern-availability-check", testKey)
	return true
}

func (*systemProvider) Name() string {
	return "system keyring"
}
