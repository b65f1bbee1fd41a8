// SPDX-FileCopyrightText: Copyright 2025 Lantern Labs, Inc.
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"sync"

	"github.com/lanternhq/authkit/pkg/logger"
)

// compositeProvider delegates to the first functional backend from an
// ordered candidate list. The choice is made lazily on first use and then
// sticks for the process lifetime so secrets are not split across backends.
type compositeProvider struct {
	candidates []Provider

	mu       sync.Mutex
	selected Provider
}

// NewCompositeProvider returns a provider that prefers the platform
// credential store and falls back to the kernel keyring on Linux.
func NewCompositeProvider() Provider {
	candidates := []Provider{NewSystemProvider()}
	if keyctl, err := NewKeyctlProvider(); err == nil {
		candidates = append(candidates, keyctl)
	}
	return &compositeProvider{candidates: candidates}
}

func (c *compositeProvider) backend() Provider {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected != nil {
		return c.selected
	}
	for _, candidate := range c.candidates {
		if candidate.IsAvailable() {
			logger.Debugf("selected secret storage backend: %s", candidate.Name())
			c.selected = candidate
			return candidate
		}
	}
	// No functional backend: remember the first candidate so error
	// messages name a concrete backend instead of flapping per call.
	c.selected = c.candidates[0]
	return c.selected
}

func (c *compositeProvider) Set(service, key, value string) error {
	return c.backend().Set(service, key, value)
}

func (c *compositeProvider) Get(service, key string) (string, error) {
	return c.backend().Get(service, key)
}

func (c *compositeProvider) Delete(service, key string) error {
	return c.backend().Delete(service, key)
}

func (c *compositeProvider) DeleteAll(service string) error {
	return c.backend().DeleteAll(service)
}

func (c *compositeProvider) IsAvailable() bool {
	for _, candidate := range c.candidates {
		if candidate.IsAvailable() {
			return true
		}
	}
	return false
}

func (c *compositeProvider) Name() string {
	return "composite (" + c.backend().Name() + ")"
}
