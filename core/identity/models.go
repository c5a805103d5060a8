package identity

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/smartlearn/core"
)

type Role string

// Roles
const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

var (
	AllRoles = []Role{RoleStudent, RoleTeacher, RoleAdmin}
	// SignUpRoles can be picked by people creating their own account.
	SignUpRoles = []Role{RoleStudent, RoleTeacher}
)

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ParseRole parses a role case-insensitively.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(core.CleanString(s)))
	return r, r.Valid()
}

type Status string

// Subscription statuses
const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
	StatusNone    Status = "NONE"
)

type Plan string

// Subscription plans
const (
	PlanDaily   Plan = "DAILY"
	PlanWeekly  Plan = "WEEKLY"
	PlanMonthly Plan = "MONTHLY"
)

var (
	AllPlans = []Plan{PlanDaily, PlanWeekly, PlanMonthly}

	planDurations = map[Plan]time.Duration{
		PlanDaily:   24 * time.Hour,
		PlanWeekly:  7 * 24 * time.Hour,
		PlanMonthly: 30 * 24 * time.Hour,
	}
)

// Duration is the access window bought with the plan, counted from the moment of purchase.
func (p Plan) Duration() time.Duration {
	return planDurations[p]
}

func (p Plan) Valid() bool {
	_, ok := planDurations[p]
	return ok
}

// ParsePlan parses a plan case-insensitively.
func ParsePlan(s string) (Plan, bool) {
	p := Plan(strings.ToUpper(core.CleanString(s)))
	return p, p.Valid()
}

type Identity struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Role                 Role       `json:"role"`
	Avatar               string     `json:"avatar,omitempty"`
	SubscriptionStatus   Status     `json:"subscriptionStatus"`
	CurrentPlan          Plan       `json:"currentPlan,omitempty"`
	SubscriptionExpiry   *time.Time `json:"subscriptionExpiry,omitempty"` // UTC
	UnlockedLiveSessions []string   `json:"unlockedLiveSessions"`
	PurchasedBooks       []string   `json:"purchasedBooks"`
}

func (i *Identity) IsStudent() bool { return i.Role == RoleStudent }
func (i *Identity) IsTeacher() bool { return i.Role == RoleTeacher }
func (i *Identity) IsAdmin() bool   { return i.Role == RoleAdmin }

// HasActiveSubscription reports whether the subscription is ACTIVE and not yet past its expiry at `now`.
func (i *Identity) HasActiveSubscription(now time.Time) bool {
	return i.SubscriptionStatus == StatusActive &&
		i.SubscriptionExpiry != nil &&
		i.SubscriptionExpiry.After(now)
}

// Expired reports whether a Student's ACTIVE subscription ran past its expiry at `now`.
// Teachers and Admins never expire, even when they bought a plan.
func (i *Identity) Expired(now time.Time) bool {
	return i.IsStudent() &&
		i.SubscriptionStatus == StatusActive &&
		i.SubscriptionExpiry != nil &&
		now.After(*i.SubscriptionExpiry)
}

// SetSubscription activates `plan` from `now`, replacing any previous plan and expiry.
func (i *Identity) SetSubscription(plan Plan, now time.Time) {
	expiry := now.Add(plan.Duration()).UTC()
	i.SubscriptionStatus = StatusActive
	i.CurrentPlan = plan
	i.SubscriptionExpiry = &expiry
}

func (i *Identity) HasUnlocked(sessionID string) bool {
	return core.ContainsString(i.UnlockedLiveSessions, sessionID)
}

func (i *Identity) HasPurchased(bookID string) bool {
	return core.ContainsString(i.PurchasedBooks, bookID)
}

// UnlockLiveSession adds `sessionID` to the unlocked set; it reports false if it was already there.
func (i *Identity) UnlockLiveSession(sessionID string) bool {
	if i.HasUnlocked(sessionID) {
		return false
	}
	i.UnlockedLiveSessions = append(i.UnlockedLiveSessions, sessionID)
	return true
}

// AddBooks adds the books not owned yet and returns them.
func (i *Identity) AddBooks(bookIDs ...string) []string {
	added := make([]string, 0, len(bookIDs))
	for _, id := range bookIDs {
		if id == "" || i.HasPurchased(id) || core.ContainsString(added, id) {
			continue
		}
		added = append(added, id)
	}
	i.PurchasedBooks = append(i.PurchasedBooks, added...)
	return added
}

// Clone returns a deep copy, so that callers never share slices or the expiry pointer with the store.
func (i Identity) Clone() Identity {
	c := i
	if i.SubscriptionExpiry != nil {
		exp := *i.SubscriptionExpiry
		c.SubscriptionExpiry = &exp
	}
	c.UnlockedLiveSessions = append(make([]string, 0, len(i.UnlockedLiveSessions)), i.UnlockedLiveSessions...)
	c.PurchasedBooks = append(make([]string, 0, len(i.PurchasedBooks)), i.PurchasedBooks...)
	return c
}

// New returns a freshly provisioned Identity for `email` with `role`.
// Teachers and Admins start ACTIVE without expiry; Students start with no subscription.
func New(id, email, name string, role Role) Identity {
	email = NormalizeEmail(email)
	if name = core.CleanString(name); name == "" {
		name = LocalPart(email)
	}
	status := StatusNone
	if role != RoleStudent {
		status = StatusActive
	}
	return Identity{
		ID:                   id,
		Name:                 name,
		Email:                email,
		Role:                 role,
		Avatar:               DefaultAvatar(email),
		SubscriptionStatus:   status,
		UnlockedLiveSessions: []string{},
		PurchasedBooks:       []string{},
	}
}

// NormalizeEmail is the Directory key for an email.
func NormalizeEmail(email string) string {
	return core.CleanString(email, true /* lower */)
}

func LocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

func DefaultAvatar(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}

// NewIdentity contains information needed to sign up.
type NewIdentity struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,signuprole"`
	Password string `json:"password" validate:"required"`
	Avatar   string `json:"avatar" validate:"omitempty,url"`
}

func (ni *NewIdentity) Validate(validate *validator.Validate) error {
	ni.Name = core.CleanString(ni.Name)
	ni.Email = NormalizeEmail(ni.Email)
	ni.Role = strings.ToUpper(core.CleanString(ni.Role))
	ni.Avatar = core.CleanString(ni.Avatar)
	return validate.Struct(ni)
}

// Filter selects identities from the Directory; zero fields match everything.
type Filter struct {
	Search string `query:"search"`
	Role   Role   `query:"role"`
	Status Status `query:"status"`
}

func (f *Filter) Clean() {
	f.Search = core.CleanString(f.Search, true /* lower */)
	f.Role = Role(strings.ToUpper(core.CleanString(string(f.Role))))
	f.Status = Status(strings.ToUpper(core.CleanString(string(f.Status))))
}

func (f Filter) Match(i Identity) bool {
	if f.Role != "" && i.Role != f.Role {
		return false
	}
	if f.Status != "" && i.SubscriptionStatus != f.Status {
		return false
	}
	if f.Search != "" &&
		!strings.Contains(strings.ToLower(i.Name), f.Search) &&
		!strings.Contains(i.Email, f.Search) {
		return false
	}
	return true
}
