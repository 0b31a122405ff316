package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Common errors for identity repositories
var (
	ErrIdentityNotFound      = errors.New("identity not found")
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrDuplicateProviderLink = errors.New("provider identity already linked")
	ErrVersionConflict       = errors.New("identity version conflict")
)

// Repository is the credential store contract. Document-store semantics:
// whole identity snapshots in and out, a unique index on email, and
// conditional writes keyed by the snapshot's Version.
type Repository interface {
	// FindByEmail looks up an identity by normalized email
	FindByEmail(ctx context.Context, email string) (Identity, error)

	// FindByID looks up an identity by id
	FindByID(ctx context.Context, id uuid.UUID) (Identity, error)

	// FindByProviderSubject looks up an identity by a linked OAuth identity
	FindByProviderSubject(ctx context.Context, provider, subject string) (Identity, error)

	// Create stores a new identity. Fails with ErrDuplicateEmail or
	// ErrDuplicateProviderLink on unique-index violations.
	Create(ctx context.Context, ident Identity) (Identity, error)

	// Save writes a modified snapshot back. The write only applies when the
	// stored Version still matches the snapshot's; otherwise it fails with
	// ErrVersionConflict and the caller re-reads and retries. Newly added
	// provider links are persisted as part of the save.
	Save(ctx context.Context, ident Identity) (Identity, error)
}
