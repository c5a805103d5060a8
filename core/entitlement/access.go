package entitlement

import (
	"context"
	"strings"
	"time"

	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/core/identity"
)

type ResourceKind string

// Resource kinds
const (
	Lessons     ResourceKind = "LESSONS"
	LiveClass   ResourceKind = "LIVE_CLASS"
	Dashboard   ResourceKind = "DASHBOARD"
	LiveSession ResourceKind = "LIVE_SESSION"
	Book        ResourceKind = "BOOK"
)

var resourceKinds = map[string]ResourceKind{
	"lessons":      Lessons,
	"live":         LiveClass,
	"live-class":   LiveClass,
	"dashboard":    Dashboard,
	"live-session": LiveSession,
	"book":         Book,
}

// ParseResourceKind accepts either the kind itself or its route name (e.g. "live-session").
func ParseResourceKind(s string) (ResourceKind, bool) {
	s = core.CleanString(s, true /* lower */)
	if k, ok := resourceKinds[s]; ok {
		return k, true
	}
	k := ResourceKind(strings.ToUpper(s))
	switch k {
	case Lessons, LiveClass, Dashboard, LiveSession, Book:
		return k, true
	}
	return "", false
}

// NeedsID reports whether access to the kind is granted per item.
func (k ResourceKind) NeedsID() bool { return k == LiveSession || k == Book }

type Resource struct {
	Kind ResourceKind
	ID   string // only for LiveSession and Book
}

// IsEntitled decides whether `usr` may use `res` at `now`.
// Teachers and Admins are always entitled. Students need an unexpired ACTIVE subscription for
// the guarded areas, the subscription plus an unlock for a live session, and a purchase for a book.
func IsEntitled(usr identity.Identity, res Resource, now time.Time) bool {
	if usr.IsTeacher() || usr.IsAdmin() {
		return true
	}
	switch res.Kind {
	case Lessons, LiveClass, Dashboard:
		return usr.HasActiveSubscription(now)
	case LiveSession:
		return usr.HasActiveSubscription(now) && usr.HasUnlocked(res.ID)
	case Book:
		return usr.HasPurchased(res.ID)
	}
	return false
}

type Decision string

// Gate decisions
const (
	Allow           Decision = "ALLOW"
	RedirectLogin   Decision = "REDIRECT_LOGIN"
	RedirectPayment Decision = "REDIRECT_PAYMENT"
)

// Gate decides what happens to a navigation towards a guarded area.
func Gate(usr *identity.Identity, res Resource, now time.Time) Decision {
	if usr == nil {
		return RedirectLogin
	}
	if IsEntitled(*usr, res, now) {
		return Allow
	}
	return RedirectPayment
}

// IsEntitled evaluates the current Session against `res`.
func (s *Store) IsEntitled(ctx context.Context, res Resource) (bool, error) {
	usr, ok, err := s.Current(ctx)
	if err != nil || !ok {
		return false, err
	}
	return IsEntitled(usr, res, nowFunc()), nil
}

// Gate evaluates the current Session against `res`.
func (s *Store) Gate(ctx context.Context, res Resource) (Decision, error) {
	usr, ok, err := s.Current(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return Gate(nil, res, nowFunc()), nil
	}
	return Gate(&usr, res, nowFunc()), nil
}
