package identity

import (
	"context"
	"errors"
)

var (
	// errors
	ErrNotFound    = errors.New("identity not found")
	ErrNoSession   = errors.New("no identity logged in")
	ErrEmailExists = errors.New("an account with this email already exists")
)

type (
	// Repository is the Directory: every known Identity, keyed by ID and unique by normalized email.
	Repository interface {
		QueryAll(ctx context.Context) ([]Identity, error)
		Filter(ctx context.Context, filter Filter) ([]Identity, error)
		GetByID(ctx context.Context, id string) (Identity, error)
		GetByEmail(ctx context.Context, email string) (Identity, error)
		// Create returns ErrEmailExists if the email is taken.
		Create(ctx context.Context, id Identity) (Identity, error)
		// Update applies `mutate` to the stored Identity and saves the result atomically.
		// Nothing is saved if `mutate` returns an error.
		Update(ctx context.Context, id string, mutate func(*Identity) error) (Identity, error)
		// Reset replaces the whole Directory.
		Reset(ctx context.Context, identities []Identity) error
	}

	// SessionRepository holds the one Identity currently logged in.
	SessionRepository interface {
		// Current returns ErrNoSession when logged out.
		Current(ctx context.Context) (Identity, error)
		Save(ctx context.Context, id Identity) error
		Clear(ctx context.Context) error
	}
)
