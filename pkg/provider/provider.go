// Package provider declares the boundary to external OAuth providers. The
// handshake itself happens upstream; this package only decides which
// providers are acceptable and validates the profiles they hand over.
package provider

import (
	"fmt"
	"strings"
	"sync"
)

// Provider describes one configured external OAuth provider
type Provider struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty"`
	AuthURL      string   `json:"auth_url"`
	TokenURL     string   `json:"token_url"`
	UserInfoURL  string   `json:"user_info_url"`
	Scopes       []string `json:"scopes"`
	Enabled      bool     `json:"enabled"`
}

// Validate checks that the provider definition is usable
func (p *Provider) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("provider ID is required")
	}
	if p.ClientID == "" {
		return fmt.Errorf("client ID is required for provider %s", p.ID)
	}
	if p.AuthURL == "" {
		return fmt.Errorf("auth URL is required for provider %s", p.ID)
	}
	if p.TokenURL == "" {
		return fmt.Errorf("token URL is required for provider %s", p.ID)
	}
	return nil
}

// Profile is the already-authenticated user tuple an OAuth callback hands to
// the login service
type Profile struct {
	Provider      string `json:"provider"`
	Subject       string `json:"subject"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Validate checks the profile carries enough to key an identity
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Provider) == "" {
		return fmt.Errorf("provider is required")
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}

// Registry holds the configured providers
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds or replaces a provider definition
func (r *Registry) Register(p Provider) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID] = p
	return nil
}

// Lookup returns the provider definition for the given id
func (r *Registry) Lookup(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Enabled reports whether the provider is registered and enabled
func (r *Registry) Enabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return ok && p.Enabled
}

// IDs returns the ids of all registered providers
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	return ids
}
