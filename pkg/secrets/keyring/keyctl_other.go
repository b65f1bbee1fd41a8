//go:build !linux
// +build !linux

package keyring

import "errors"

// NewKeyctlProvider is only supported on Linux.
func NewKeyctlProvider() (Provider, error) {
	return nil, errors.New("kernel keyctl is only available on Linux")
}
