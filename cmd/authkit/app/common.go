package app

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/lanternhq/authkit/pkg/credentials"
	"github.com/lanternhq/authkit/pkg/providers"
	"github.com/lanternhq/authkit/pkg/scopes"
	"github.com/lanternhq/authkit/pkg/secrets"
	"github.com/lanternhq/authkit/pkg/session"
)

// buildController assembles the full auth core from configuration: provider
// registry, secret backend, credential store, scope manager and the session
// controller on top.
func buildController() (*session.Controller, error) {
	registry, err := providers.LoadRegistry(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if len(registry.IDs()) == 0 {
		return nil, fmt.Errorf("no providers configured; add a providers section to %s", viper.ConfigFileUsed())
	}

	backend, err := secrets.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open secret storage: %w", err)
	}

	scopeMgr, err := scopes.NewDefaultManager()
	if err != nil {
		return nil, err
	}

	return session.NewController(session.Options{
		Registry:    registry,
		Credentials: credentials.NewStore(backend),
		Scopes:      scopeMgr,
	})
}

// resolveProvider picks the provider to act on: the positional argument if
// given, the sole configured provider otherwise.
func resolveProvider(args []string) (string, error) {
	registry, err := providers.LoadRegistry(viper.GetViper())
	if err != nil {
		return "", err
	}
	ids := registry.IDs()

	if len(args) > 0 {
		if _, err := registry.Get(args[0]); err != nil {
			return "", err
		}
		return args[0], nil
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("no providers configured")
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("multiple providers configured (%v); specify one", ids)
	}
}
