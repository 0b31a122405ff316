package config

import (
	"github.com/workhive/auth/pkg/provider"
)

// ProviderConfig holds OAuth provider credentials. A provider with no
// client ID stays out of the registry even when enabled.
type ProviderConfig struct {
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleEnabled      bool   `env:"GOOGLE_ENABLED" env-default:"false"`

	MicrosoftClientID     string `env:"MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret string `env:"MICROSOFT_CLIENT_SECRET"`
	MicrosoftEnabled      bool   `env:"MICROSOFT_ENABLED" env-default:"false"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubEnabled      bool   `env:"GITHUB_ENABLED" env-default:"false"`
}

// ToRegistry builds a provider registry from the configured credentials
func (p ProviderConfig) ToRegistry() (*provider.Registry, error) {
	registry := provider.NewRegistry()

	if p.GoogleClientID != "" {
		err := registry.Register(provider.Provider{
			ID:           "google",
			DisplayName:  "Google",
			ClientID:     p.GoogleClientID,
			ClientSecret: p.GoogleClientSecret,
			AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:     "https://oauth2.googleapis.com/token",
			UserInfoURL:  "https://www.googleapis.com/oauth2/v2/userinfo",
			Scopes:       []string{"openid", "profile", "email"},
			Enabled:      p.GoogleEnabled,
		})
		if err != nil {
			return nil, err
		}
	}

	if p.MicrosoftClientID != "" {
		err := registry.Register(provider.Provider{
			ID:           "microsoft",
			DisplayName:  "Microsoft",
			ClientID:     p.MicrosoftClientID,
			ClientSecret: p.MicrosoftClientSecret,
			AuthURL:      "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
			TokenURL:     "https://login.microsoftonline.com/common/oauth2/v2.0/token",
			UserInfoURL:  "https://graph.microsoft.com/v1.0/me",
			Scopes:       []string{"openid", "profile", "email"},
			Enabled:      p.MicrosoftEnabled,
		})
		if err != nil {
			return nil, err
		}
	}

	if p.GitHubClientID != "" {
		err := registry.Register(provider.Provider{
			ID:           "github",
			DisplayName:  "GitHub",
			ClientID:     p.GitHubClientID,
			ClientSecret: p.GitHubClientSecret,
			AuthURL:      "https://github.com/login/oauth/authorize",
			TokenURL:     "https://github.com/login/oauth/access_token",
			UserInfoURL:  "https://api.github.com/user",
			Scopes:       []string{"user:email"},
			Enabled:      p.GitHubEnabled,
		})
		if err != nil {
			return nil, err
		}
	}

	return registry, nil
}
