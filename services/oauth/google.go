// Package oauthsvc signs people in through external identity providers.
package oauthsvc

import (
	"context"
	"time"

	"github.com/trezcool/smartlearn/core"
)

// SimulatedGoogleProfile is the account every simulated Google sign-in resolves to.
var SimulatedGoogleProfile = core.ExternalProfile{
	Email:   "google.student@gmail.com",
	Name:    "Google Student",
	Picture: "https://ui-avatars.com/api/?name=Google+Student&background=DB4437&color=fff",
}

type simulatedGoogle struct {
	latency time.Duration
	profile core.ExternalProfile
}

var _ core.IdentityProvider = (*simulatedGoogle)(nil)

// NewSimulatedGoogle completes every sign-in with SimulatedGoogleProfile after the configured latency.
func NewSimulatedGoogle(conf core.OAuthConfig) core.IdentityProvider {
	return &simulatedGoogle{latency: conf.Latency, profile: SimulatedGoogleProfile}
}

func (g *simulatedGoogle) Authenticate(ctx context.Context) (core.ExternalProfile, error) {
	if g.latency > 0 {
		timer := time.NewTimer(g.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return core.ExternalProfile{}, ctx.Err()
		case <-timer.C:
		}
	}
	return g.profile, nil
}
