//go:build linux
// +build linux

package keyring

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// keyctlProvider stores secrets in the Linux kernel user keyring. It is the
// fallback for headless Linux hosts where no Secret Service is running.
type keyctlProvider struct {
	ringID int
	mu     sync.RWMutex
	keys   map[string]map[string]int // service -> key -> keyid mapping
}

// NewKeyctlProvider returns a kernel-keyring backend.
func NewKeyctlProvider() (Provider, error) {
	// Use user keyring for persistence across process invocations
	ringID, err := unix.KeyctlGetKeyringID(unix.KEY_SPEC_USER_KEYRING, false)
	if err != nil {
		return nil, fmt.Errorf("could not get user keyring: %w", err)
	}

	// Link to thread keyring for reads
	_, err = unix.KeyctlInt(unix.KEYCTL_LINK, ringID, unix.KEY_SPEC_THREAD_KEYRING, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to link user keyring to thread keyring: %w", err)
	}

	return &keyctlProvider{
		ringID: ringID,
		keys:   make(map[string]map[string]int),
	}, nil
}

func keyName(service, key string) string {
	return fmt.Sprintf("%s:%s", service, key)
}

func (k *keyctlProvider) Set(service, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	keyID, err := unix.AddKey("user", keyName(service, key), []byte(value), k.ringID)
	if err != nil {
		return fmt.Errorf("failed to set key %q in user keyring: %w", key, err)
	}

	// Track the key for DeleteAll
	if k.keys[service] == nil {
		k.keys[service] = make(map[string]int)
	}
	k.keys[service][key] = keyID

	return nil
}

func (k *keyctlProvider) Get(service, key string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	keyID, err := unix.KeyctlSearch(k.ringID, "user", keyName(service, key), 0)
	if err != nil {
		return "", ErrNotFound
	}

	bufSize := 2048
	buf := make([]byte, bufSize)
	readBytes, err := unix.KeyctlBuffer(unix.KEYCTL_READ, keyID, buf, bufSize)
	if err != nil {
		return "", fmt.Errorf("read of key %q failed: %w", key, err)
	}
	if readBytes > bufSize {
		return "", fmt.Errorf("buffer too small for keyring payload")
	}

	return string(buf[:readBytes]), nil
}

func (k *keyctlProvider) Delete(service, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.deleteLocked(service, key)
}

func (k *keyctlProvider) deleteLocked(service, key string) error {
	keyID, err := unix.KeyctlSearch(k.ringID, "user", keyName(service, key), 0)
	if err != nil {
		// Key not found - this is not an error for Delete
		return nil
	}

	if _, err := unix.KeyctlInt(unix.KEYCTL_REVOKE, keyID, 0, 0, 0); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}

	if serviceKeys, exists := k.keys[service]; exists {
		delete(serviceKeys, key)
		if len(serviceKeys) == 0 {
			delete(k.keys, service)
		}
	}
	return nil
}

func (k *keyctlProvider) DeleteAll(service string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var lastErr error
	for key := range k.keys[service] {
		if err := k.deleteLocked(service, key); err != nil {
			lastErr = err
		}
	}
	delete(k.keys, service)
	return lastErr
}

func (k *keyctlProvider) IsAvailable() bool {
	testKey := GenerateUniqueTestKey()
	if err := k.Set("lantern-availability-check", testKey, "test"); err != nil {
		return false
	}
	_ = k.Delete("lantern-availability-check", testKey)
	return true
}

func (*keyctlProvider) Name() string {
	return "kernel keyctl"
}
