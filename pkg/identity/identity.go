// Package identity is the credential store: account records with password
// hashes, lockout counters, two-factor state, and linked OAuth identities.
package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is one account as the login policy engine and session validator
// see it. Instances are snapshots; mutations go back through Repository.Save
// which enforces optimistic concurrency on Version.
type Identity struct {
	ID                uuid.UUID
	Email             string // unique, stored lower-cased
	Name              string
	PasswordHash      string // empty for OAuth-only identities
	PasswordVersion   int
	TwoFactorSecret   string
	TwoFactorEnabled  bool
	FailedAttempts    int
	LockedUntil       *time.Time
	PasswordChangedAt time.Time
	EmailVerified     bool
	Providers         []ProviderLink
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProviderLink ties an identity to one external OAuth identity
type ProviderLink struct {
	Provider string
	Subject  string
	LinkedAt time.Time
}

// NormalizeEmail lower-cases and trims an address for lookups and storage
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasPassword reports whether password login is possible for this identity
func (i *Identity) HasPassword() bool {
	return i.PasswordHash != ""
}

// Locked reports whether the identity is locked out at the given instant
func (i *Identity) Locked(now time.Time) bool {
	return i.LockedUntil != nil && i.LockedUntil.After(now)
}

// LinkedTo reports whether the identity carries the given provider link
func (i *Identity) LinkedTo(provider, subject string) bool {
	for _, l := range i.Providers {
		if l.Provider == provider && l.Subject == subject {
			return true
		}
	}
	return false
}

// AddLink appends a provider link if it is not already present
func (i *Identity) AddLink(provider, subject string, linkedAt time.Time) {
	if i.LinkedTo(provider, subject) {
		return
	}
	i.Providers = append(i.Providers, ProviderLink{
		Provider: provider,
		Subject:  subject,
		LinkedAt: linkedAt,
	})
}

// Clone returns a deep copy safe to mutate independently of the original
func (i Identity) Clone() Identity {
	out := i
	if i.LockedUntil != nil {
		t := *i.LockedUntil
		out.LockedUntil = &t
	}
	if len(i.Providers) > 0 {
		out.Providers = make([]ProviderLink, len(i.Providers))
		copy(out.Providers, i.Providers)
	}
	return out
}
