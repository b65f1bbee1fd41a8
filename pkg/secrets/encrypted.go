// SPDX-FileCopyrightText: Copyright 2025 Lantern Labs, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package secrets selects and configures the secret storage backend used
// for refresh tokens: the OS keyring where one is functional, otherwise an
// encrypted file under the user's data directory.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/lanternhq/authkit/pkg/secrets/keyring"
)

// EncryptedFileProvider stores secrets in a single AES-256-GCM encrypted
// file. It is the fallback for hosts without a usable OS keyring; the key
// is derived from a password supplied via the environment.
type EncryptedFileProvider struct {
	filePath string
	key      [32]byte

	mu      sync.Mutex
	secrets map[string]map[string]string // service -> key -> value
}

// NewEncryptedFileProvider opens (or creates) the encrypted secrets file at
// path, using a key derived from password.
func NewEncryptedFileProvider(path, password string) (*EncryptedFileProvider, error) {
	if password == "" {
		return nil, errors.New("encrypted secret storage requires a password")
	}

	p := &EncryptedFileProvider{
		filePath: path,
		key:      sha256.Sum256([]byte(password)),
		secrets:  make(map[string]map[string]string),
	}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *EncryptedFileProvider) load() error {
	ciphertext, err := os.ReadFile(p.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read secrets file: %w", err)
	}
	if len(ciphertext) == 0 {
		return nil
	}

	plaintext, err := p.decrypt(ciphertext)
	if err != nil {
		return fmt.Errorf("failed to decrypt secrets file (wrong password?): %w", err)
	}
	if err := json.Unmarshal(plaintext, &p.secrets); err != nil {
		return fmt.Errorf("failed to decode secrets file: %w", err)
	}
	return nil
}

// flush writes the encrypted file atomically via a temp file and rename.
func (p *EncryptedFileProvider) flush() error {
	plaintext, err := json.Marshal(p.secrets)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}

	ciphertext, err := p.encrypt(plaintext)
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".secrets-*")
	if err != nil {
		return fmt.Errorf("failed to create temp secrets file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict secrets file permissions: %w", err)
	}
	if _, err := tmp.Write(ciphertext); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close secrets file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.filePath); err != nil {
		return fmt.Errorf("failed to replace secrets file: %w", err)
	}
	return nil
}

func (p *EncryptedFileProvider) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(p.key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (p *EncryptedFileProvider) decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(p.key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

// Set stores a key-value pair in the encrypted file.
func (p *EncryptedFileProvider) Set(service, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.secrets[service] == nil {
		p.secrets[service] = make(map[string]string)
	}
	p.secrets[service][key] = value
	return p.flush()
}

// Get retrieves a value from the encrypted file.
func (p *EncryptedFileProvider) Get(service, key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	value, ok := p.secrets[service][key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return value, nil
}

// Delete removes a specific key.
func (p *EncryptedFileProvider) Delete(service, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.secrets[service][key]; !ok {
		return nil
	}
	delete(p.secrets[service], key)
	return p.flush()
}

// DeleteAll removes all keys for a service.
func (p *EncryptedFileProvider) DeleteAll(service string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.secrets[service]; !ok {
		return nil
	}
	delete(p.secrets, service)
	return p.flush()
}

// IsAvailable reports whether the file can be written.
func (p *EncryptedFileProvider) IsAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flush() == nil
}

// Name returns the backend name.
func (*EncryptedFileProvider) Name() string {
	return "encrypted file"
}
