package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Version represents the version of the password hashing algorithm
type Version int

const (
	// V1 is the original bcrypt implementation
	V1 Version = 1
	// V2 is Argon2id
	V2 Version = 2

	// CurrentVersion is the version used for new passwords
	CurrentVersion = V2
)

// Hasher defines the interface for password hashing implementations
type Hasher interface {
	// Hash hashes a password
	Hash(password string) (string, error)

	// Verify checks if the provided password matches the stored hash
	Verify(password, hashedPassword string) (bool, error)

	// Version reports the hash version this hasher produces
	Version() Version
}

// BcryptHasher implements Hasher using bcrypt
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher with the default cost
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

// Hash implements Hasher.Hash
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}

	return string(hashedBytes), nil
}

// Verify implements Hasher.Verify
func (h *BcryptHasher) Verify(password, hashedPassword string) (bool, error) {
	if password == "" || hashedPassword == "" {
		return false, errors.New("password and hashed password cannot be empty")
	}

	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil // Password doesn't match, but not an error
		}
		return false, err // Some other error occurred
	}

	return true, nil
}

// Version implements Hasher.Version
func (h *BcryptHasher) Version() Version {
	return V1
}

// Manager routes hashing and verification by hash version, so hashes created
// under an older algorithm keep verifying after an upgrade
type Manager struct {
	hashers map[Version]Hasher
	current Version
}

// NewManager creates a Manager with the built-in hashers registered
func NewManager() *Manager {
	m := &Manager{
		hashers: make(map[Version]Hasher),
		current: CurrentVersion,
	}
	m.Register(NewBcryptHasher())
	m.Register(NewArgon2Hasher())
	return m
}

// Register adds a hasher for its version, replacing any previous registration
func (m *Manager) Register(h Hasher) {
	m.hashers[h.Version()] = h
}

// Hash hashes a password with the current version's hasher
func (m *Manager) Hash(password string) (string, Version, error) {
	hasher, ok := m.hashers[m.current]
	if !ok {
		return "", 0, fmt.Errorf("no hasher registered for version %d", m.current)
	}
	hashed, err := hasher.Hash(password)
	if err != nil {
		return "", 0, err
	}
	return hashed, m.current, nil
}

// Verify checks a password against a hash created under the given version
func (m *Manager) Verify(password, hashedPassword string, version Version) (bool, error) {
	hasher, ok := m.hashers[version]
	if !ok {
		return false, fmt.Errorf("no hasher registered for version %d", version)
	}
	return hasher.Verify(password, hashedPassword)
}

// NeedsRehash reports whether a hash at the given version should be upgraded
func (m *Manager) NeedsRehash(version Version) bool {
	return version < m.current
}
