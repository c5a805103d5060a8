package core

import "context"

type (
	// ExternalProfile is what an external identity provider tells us about the signed-in person.
	ExternalProfile struct {
		Email   string
		Name    string
		Picture string
	}

	IdentityProvider interface {
		// Authenticate runs the provider's sign-in flow.
		Authenticate(ctx context.Context) (ExternalProfile, error)
	}
)
