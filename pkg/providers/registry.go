package providers

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// builtins are the providers Lantern ships with. Client IDs are supplied by
// the host configuration; only the protocol-level settings are baked in.
var builtins = map[string]Config{
	"google": {
		ID:         "google",
		Issuer:     "https://accounts.google.com",
		BaseScopes: []string{"openid", "email", "profile"},
		AuthParams: map[string]string{
			// Google only issues refresh tokens for offline access.
			"access_type": "offline",
		},
	},
	"microsoft": {
		ID:         "microsoft",
		Issuer:     "https://login.microsoftonline.com/common/v2.0",
		BaseScopes: []string{"openid", "email", "profile", "offline_access"},
	},
	"gitlab": {
		ID:         "gitlab",
		Issuer:     "https://gitlab.com",
		BaseScopes: []string{"openid", "email", "profile"},
	},
}

// Registry is a read-only lookup of provider configurations.
type Registry struct {
	configs map[string]Config
}

// NewRegistry builds a registry from the given configurations. Each entry is
// validated; the first invalid one aborts the load.
func NewRegistry(configs ...Config) (*Registry, error) {
	r := &Registry{configs: make(map[string]Config, len(configs))}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.configs[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate provider %s", cfg.ID)
		}
		r.configs[cfg.ID] = cfg
	}
	return r, nil
}

// LoadRegistry merges built-in provider settings with the "providers" section
// of the given viper configuration and returns the resulting registry. The
// file supplies client IDs/secrets and may override scopes, callback port,
// auth params and the refresh policy, or define entirely new providers.
func LoadRegistry(v *viper.Viper) (*Registry, error) {
	var fileConfigs []Config
	if err := v.UnmarshalKey("providers", &fileConfigs); err != nil {
		return nil, fmt.Errorf("failed to parse provider configuration: %w", err)
	}

	merged := make([]Config, 0, len(fileConfigs))
	for _, fc := range fileConfigs {
		if base, ok := builtins[fc.ID]; ok {
			merged = append(merged, overlay(base, fc))
		} else {
			merged = append(merged, fc)
		}
	}
	return NewRegistry(merged...)
}

// overlay applies the non-zero fields of override on top of base.
func overlay(base, override Config) Config {
	out := base
	if override.Issuer != "" {
		out.Issuer = override.Issuer
	}
	if override.ClientID != "" {
		out.ClientID = override.ClientID
	}
	if override.ClientSecret != "" {
		out.ClientSecret = override.ClientSecret
	}
	if len(override.BaseScopes) > 0 {
		out.BaseScopes = override.BaseScopes
	}
	if override.CallbackPort != 0 {
		out.CallbackPort = override.CallbackPort
	}
	if len(override.AuthParams) > 0 {
		out.AuthParams = override.AuthParams
	}
	if override.RefreshPolicy != "" {
		out.RefreshPolicy = override.RefreshPolicy
	}
	return out
}

// Get returns the configuration for the given provider. Asking for an
// unknown provider is a programming error on the caller's side; it is
// reported as an error rather than a panic so the UI can surface it.
func (r *Registry) Get(provider string) (Config, error) {
	cfg, ok := r.configs[provider]
	if !ok {
		return Config{}, fmt.Errorf("unknown provider %q", provider)
	}
	return cfg, nil
}

// IDs returns the registered provider identifiers in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
