// SPDX-FileCopyrightText: Copyright 2025 Lantern Labs, Inc.
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"fmt"
	"os"

	"github.com/adrg/xdg"

	"github.com/lanternhq/authkit/pkg/logger"
	"github.com/lanternhq/authkit/pkg/secrets/keyring"
)

const (
	// PasswordEnvVar supplies the password for the encrypted file backend.
	PasswordEnvVar = "LANTERN_SECRETS_PASSWORD"

	// ProviderEnvVar overrides the automatic backend selection.
	// Recognized values: "keyring", "encrypted".
	ProviderEnvVar = "LANTERN_SECRETS_PROVIDER"

	encryptedFileName = "lantern/secrets.enc"
)

// Open selects a secret storage backend: the OS keyring when functional,
// otherwise the encrypted file fallback. The choice can be forced via
// LANTERN_SECRETS_PROVIDER.
func Open() (keyring.Provider, error) {
	switch os.Getenv(ProviderEnvVar) {
	case "keyring":
		return keyring.NewCompositeProvider(), nil
	case "encrypted":
		return openEncrypted()
	case "":
	default:
		return nil, fmt.Errorf("unknown secrets provider %q", os.Getenv(ProviderEnvVar))
	}

	composite := keyring.NewCompositeProvider()
	if composite.IsAvailable() {
		return composite, nil
	}

	logger.Warn("no OS keyring available, falling back to encrypted file storage")
	return openEncrypted()
}

func openEncrypted() (keyring.Provider, error) {
	password := os.Getenv(PasswordEnvVar)
	if password == "" {
		return nil, fmt.Errorf("encrypted secret storage requires %s to be set", PasswordEnvVar)
	}

	path, err := xdg.DataFile(encryptedFileName)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve secrets file path: %w", err)
	}
	return NewEncryptedFileProvider(path, password)
}
