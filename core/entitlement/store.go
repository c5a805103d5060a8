package entitlement

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/core/identity"
)

var (
	nowFunc   = time.Now      // mockable
	newIDFunc = uuid.NewString // mockable

	errUnchanged = errors.New("identity unchanged")
)

const providerIDPrefix = "google_"

type (
	Options struct {
		Directory  identity.Repository
		Sessions   identity.SessionRepository
		Payments   core.PaymentProcessor
		Provider   core.IdentityProvider // optional
		Mailer     core.EmailService     // optional
		Logger     core.Logger
		Validate   *validator.Validate
		AdminEmail string
	}

	// Store owns the Directory and the Session, and every rule granting or revoking paid access.
	Store struct {
		dir        identity.Repository
		sessions   identity.SessionRepository
		payments   core.PaymentProcessor
		provider   core.IdentityProvider
		mailer     core.EmailService
		logger     core.Logger
		validate   *validator.Validate
		adminEmail string

		// mu serializes every read-modify-write of the Directory entry and its Session copy.
		mu sync.Mutex
	}
)

func NewStore(opts Options) (*Store, error) {
	err := vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Directory, "Directory"),
		vala.IsNotNil(opts.Sessions, "Sessions"),
		vala.IsNotNil(opts.Payments, "Payments"),
		vala.IsNotNil(opts.Logger, "Logger"),
		vala.IsNotNil(opts.Validate, "Validate"),
	).Check()
	if err != nil {
		return nil, errors.Wrap(err, "invalid store options")
	}

	adminEmail := identity.NormalizeEmail(opts.AdminEmail)
	if adminEmail == "" {
		adminEmail = identity.DefaultAdminEmail
	}
	return &Store{
		dir:        opts.Directory,
		sessions:   opts.Sessions,
		payments:   opts.Payments,
		provider:   opts.Provider,
		mailer:     opts.Mailer,
		logger:     opts.Logger,
		validate:   opts.Validate,
		adminEmail: adminEmail,
	}, nil
}

// AdminEmail is the reserved administrative address.
func (s *Store) AdminEmail() string { return s.adminEmail }

// Current returns the Identity logged in, if any.
func (s *Store) Current(ctx context.Context) (identity.Identity, bool, error) {
	usr, err := s.sessions.Current(ctx)
	if err != nil {
		if errors.Cause(err) == identity.ErrNoSession {
			return identity.Identity{}, false, nil
		}
		return identity.Identity{}, false, errors.Wrap(err, "loading session")
	}
	return usr, true, nil
}

// Login authenticates `email` into the Session, registering it with `requestedRole` if unseen.
// The reserved administrative email always resolves to the Admin identity, and existing accounts
// keep their stored role whatever role is requested.
// Login never refuses a caller; errors only report storage failures.
func (s *Store) Login(ctx context.Context, email string, requestedRole identity.Role) (identity.Identity, error) {
	email = identity.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if email == s.adminEmail {
		return s.loginAdmin(ctx)
	}

	usr, err := s.dir.GetByEmail(ctx, email)
	switch errors.Cause(err) {
	case nil:
	case identity.ErrNotFound:
		role := requestedRole
		if !(role == identity.RoleStudent || role == identity.RoleTeacher) {
			// admin access is only granted through the reserved email
			role = identity.RoleStudent
		}
		usr, err = s.dir.Create(ctx, identity.New(newIDFunc(), email, "", role))
		if err != nil {
			return identity.Identity{}, errors.Wrap(err, "registering identity")
		}
		s.logger.Info(fmt.Sprintf("registered %s %s on first login", strings.ToLower(string(role)), usr.ID), usr)
	default:
		return identity.Identity{}, errors.Wrap(err, "finding identity by email")
	}

	if err = s.sessions.Save(ctx, usr); err != nil {
		return identity.Identity{}, errors.Wrap(err, "saving session")
	}
	return usr, nil
}

func (s *Store) loginAdmin(ctx context.Context) (identity.Identity, error) {
	admin := identity.Admin(s.adminEmail)

	stored, err := s.dir.GetByID(ctx, identity.AdminID)
	switch errors.Cause(err) {
	case nil:
		// keep purchases made while logged in as admin; the rest is fixed
		admin.UnlockedLiveSessions = stored.UnlockedLiveSessions
		admin.PurchasedBooks = stored.PurchasedBooks
	case identity.ErrNotFound:
		if _, err = s.dir.Create(ctx, admin); err != nil && errors.Cause(err) != identity.ErrEmailExists {
			return identity.Identity{}, errors.Wrap(err, "registering admin")
		}
	default:
		return identity.Identity{}, errors.Wrap(err, "finding admin")
	}

	if err = s.sessions.Save(ctx, admin); err != nil {
		return identity.Identity{}, errors.Wrap(err, "saving session")
	}
	return admin, nil
}

// LoginWithProvider signs in through the external identity provider, registering unseen people as Students.
func (s *Store) LoginWithProvider(ctx context.Context) (identity.Identity, error) {
	if s.provider == nil {
		return identity.Identity{}, errors.New("no identity provider configured")
	}
	profile, err := s.provider.Authenticate(ctx)
	if err != nil {
		return identity.Identity{}, errors.Wrap(err, "authenticating with provider")
	}
	email := identity.NormalizeEmail(profile.Email)
	if email == "" {
		return identity.Identity{}, errors.New("identity provider returned no email")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if email == s.adminEmail {
		return s.loginAdmin(ctx)
	}

	usr, err := s.dir.GetByEmail(ctx, email)
	switch errors.Cause(err) {
	case nil:
	case identity.ErrNotFound:
		nu := identity.New(providerIDPrefix+newIDFunc(), email, profile.Name, identity.RoleStudent)
		if profile.Picture != "" {
			nu.Avatar = profile.Picture
		}
		if usr, err = s.dir.Create(ctx, nu); err != nil {
			return identity.Identity{}, errors.Wrap(err, "registering provider identity")
		}
		s.logger.Info("registered student "+usr.ID+" through identity provider", usr)
	default:
		return identity.Identity{}, errors.Wrap(err, "finding identity by email")
	}

	if err = s.sessions.Save(ctx, usr); err != nil {
		return identity.Identity{}, errors.Wrap(err, "saving session")
	}
	return usr, nil
}

// SignUp registers a new account and logs it in.
// The password is required but not stored: accounts are not protected by credentials.
func (s *Store) SignUp(ctx context.Context, ni identity.NewIdentity) (identity.Identity, error) {
	if err := ni.Validate(s.validate); err != nil {
		return identity.Identity{}, err
	}
	emailTaken := core.NewValidationError(identity.ErrEmailExists,
		core.FieldError{Field: "email", Error: identity.ErrEmailExists.Error()})
	if ni.Email == s.adminEmail {
		return identity.Identity{}, emailTaken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nu := identity.New(newIDFunc(), ni.Email, ni.Name, identity.Role(ni.Role))
	if ni.Avatar != "" {
		nu.Avatar = ni.Avatar
	}
	usr, err := s.dir.Create(ctx, nu)
	if err != nil {
		if errors.Cause(err) == identity.ErrEmailExists {
			return identity.Identity{}, emailTaken
		}
		return identity.Identity{}, errors.Wrap(err, "creating identity")
	}
	if err = s.sessions.Save(ctx, usr); err != nil {
		return identity.Identity{}, errors.Wrap(err, "saving session")
	}
	return usr, nil
}

// Logout clears the Session. Logging out twice is fine.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.sessions.Clear(ctx), "clearing session")
}

// Refresh re-syncs the Session from the Directory.
func (s *Store) Refresh(ctx context.Context) (identity.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, ok, err := s.Current(ctx)
	if err != nil || !ok {
		return identity.Identity{}, false, err
	}
	stored, err := s.dir.GetByID(ctx, usr.ID)
	switch errors.Cause(err) {
	case nil:
		if usr.IsAdmin() {
			stored.Role = identity.RoleAdmin
		}
	case identity.ErrNotFound:
		return usr, true, nil
	default:
		return identity.Identity{}, false, errors.Wrap(err, "finding identity by ID")
	}
	if err = s.sessions.Save(ctx, stored); err != nil {
		return identity.Identity{}, false, errors.Wrap(err, "saving session")
	}
	return stored, true, nil
}

// Identities lists the Directory.
func (s *Store) Identities(ctx context.Context, filter identity.Filter) ([]identity.Identity, error) {
	filter.Clean()
	users, err := s.dir.Filter(ctx, filter)
	return users, errors.Wrap(err, "filtering identities")
}

// Subscribe charges the current identity for `plan`, then activates it from now,
// replacing any previous plan and expiry. It reports false when nobody is logged in
// or the payment was declined.
func (s *Store) Subscribe(ctx context.Context, plan identity.Plan, method, phone string) (bool, error) {
	if !plan.Valid() {
		return false, core.NewValidationError(nil, core.FieldError{Field: "plan", Error: "invalid plan"})
	}
	usr, ok, err := s.Current(ctx)
	if err != nil || !ok {
		return false, err
	}

	res, err := s.charge(ctx, core.PaymentRequest{
		Kind:        core.PaymentSubscription,
		IdentityID:  usr.ID,
		Method:      strings.ToUpper(method),
		Phone:       phone,
		Reference:   string(plan),
		Description: strings.ToLower(string(plan)) + " subscription",
	})
	if err != nil || !res.Succeeded() {
		return false, err
	}

	updated, err := s.update(ctx, usr, func(i *identity.Identity) error {
		i.SetSubscription(plan, nowFunc())
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "activating subscription")
	}
	s.sendReceipt(updated, core.PaymentSubscription, strings.ToLower(string(plan))+" subscription", res.TransactionID, updated.SubscriptionExpiry)
	return true, nil
}

// UnlockLiveSession charges the current identity for one live session and adds it to the unlocked set.
// Unlocking an already unlocked session succeeds without charging.
func (s *Store) UnlockLiveSession(ctx context.Context, sessionID string) (bool, error) {
	sessionID = core.CleanString(sessionID)
	if sessionID == "" {
		return false, core.NewValidationError(nil, core.FieldError{Field: "session_id", Error: "this field is required"})
	}
	usr, ok, err := s.Current(ctx)
	if err != nil || !ok {
		return false, err
	}
	if usr.HasUnlocked(sessionID) {
		return true, nil
	}

	res, err := s.charge(ctx, core.PaymentRequest{
		Kind:        core.PaymentLiveSession,
		IdentityID:  usr.ID,
		Reference:   sessionID,
		Description: "live session " + sessionID,
	})
	if err != nil || !res.Succeeded() {
		return false, err
	}

	updated, err := s.update(ctx, usr, func(i *identity.Identity) error {
		if !i.UnlockLiveSession(sessionID) {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "unlocking live session")
	}
	s.sendReceipt(updated, core.PaymentLiveSession, "live session "+sessionID, res.TransactionID, nil)
	return true, nil
}

// BuyBook charges the current identity for one book and adds it to the purchased set.
func (s *Store) BuyBook(ctx context.Context, bookID string) (bool, error) {
	bookID = core.CleanString(bookID)
	if bookID == "" {
		return false, core.NewValidationError(nil, core.FieldError{Field: "book_id", Error: "this field is required"})
	}
	return s.buyBooks(ctx, core.PaymentBook, []string{bookID})
}

// BuyBooks charges the current identity for the books it does not own yet and adds them to the
// purchased set. It succeeds without charging when every book is already owned.
func (s *Store) BuyBooks(ctx context.Context, bookIDs []string) (bool, error) {
	cleaned := make([]string, 0, len(bookIDs))
	for _, id := range bookIDs {
		if id = core.CleanString(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	return s.buyBooks(ctx, core.PaymentBooks, cleaned)
}

func (s *Store) buyBooks(ctx context.Context, kind string, bookIDs []string) (bool, error) {
	usr, ok, err := s.Current(ctx)
	if err != nil || !ok {
		return false, err
	}

	owned := usr.Clone()
	pending := owned.AddBooks(bookIDs...)
	if len(pending) == 0 {
		return true, nil
	}

	desc := "book " + pending[0]
	if len(pending) > 1 {
		desc = fmt.Sprintf("%d books (%s)", len(pending), strings.Join(pending, ", "))
	}
	res, err := s.charge(ctx, core.PaymentRequest{
		Kind:        kind,
		IdentityID:  usr.ID,
		Reference:   strings.Join(pending, ","),
		Description: desc,
	})
	if err != nil || !res.Succeeded() {
		return false, err
	}

	updated, err := s.update(ctx, usr, func(i *identity.Identity) error {
		if len(i.AddBooks(pending...)) == 0 {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "purchasing books")
	}
	s.sendReceipt(updated, kind, desc, res.TransactionID, nil)
	return true, nil
}

// Grant activates `plan` for the identity registered with `email`, without payment.
func (s *Store) Grant(ctx context.Context, email string, plan identity.Plan) (identity.Identity, error) {
	if !plan.Valid() {
		return identity.Identity{}, core.NewValidationError(nil, core.FieldError{Field: "plan", Error: "invalid plan"})
	}
	usr, err := s.dir.GetByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		return identity.Identity{}, errors.Wrap(err, "finding identity by email")
	}
	updated, err := s.update(ctx, usr, func(i *identity.Identity) error {
		i.SetSubscription(plan, nowFunc())
		return nil
	})
	return updated, errors.Wrap(err, "granting subscription")
}

// SweepExpiry expires the current Student's subscription once it ran past its expiry.
// Identities other than the current one are never touched.
func (s *Store) SweepExpiry(ctx context.Context) error {
	usr, ok, err := s.Current(ctx)
	if err != nil || !ok {
		return err
	}
	if !usr.IsStudent() || !usr.Expired(nowFunc()) {
		return nil
	}

	updated, err := s.update(ctx, usr, func(i *identity.Identity) error {
		if !i.Expired(nowFunc()) {
			return errUnchanged
		}
		i.SubscriptionStatus = identity.StatusExpired
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "expiring subscription")
	}
	if updated.SubscriptionStatus == identity.StatusExpired {
		s.logger.Info("subscription expired for "+updated.ID, updated)
	}
	return nil
}

// charge runs the payment to completion even if `ctx` is cancelled midway.
func (s *Store) charge(ctx context.Context, req core.PaymentRequest) (core.PaymentResult, error) {
	res, err := s.payments.Charge(context.WithoutCancel(ctx), req)
	if err != nil {
		return core.PaymentResult{}, errors.Wrapf(err, "charging %s", req.Kind)
	}
	if !res.Succeeded() {
		s.logger.Warn(fmt.Sprintf("%s payment declined: %s", req.Kind, res.Reason),
			map[string]interface{}{"identity": req.IdentityID, "reference": req.Reference})
	}
	return res, nil
}

// update applies `mutate` to the Directory entry of `usr` and mirrors the result to the Session
// when `usr` is still the one logged in. Identities missing from the Directory (the reserved admin
// when its email is held by another entry) are only updated in the Session.
func (s *Store) update(ctx context.Context, usr identity.Identity, mutate func(*identity.Identity) error) (identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, loggedIn, err := s.Current(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	loggedIn = loggedIn && current.ID == usr.ID

	updated, err := s.dir.Update(ctx, usr.ID, mutate)
	switch errors.Cause(err) {
	case nil:
	case errUnchanged:
		if updated, err = s.dir.GetByID(ctx, usr.ID); err != nil {
			return identity.Identity{}, err
		}
	case identity.ErrNotFound:
		if !loggedIn {
			return identity.Identity{}, err
		}
		updated = current.Clone()
		if err = mutate(&updated); err != nil {
			if errors.Cause(err) == errUnchanged {
				return current, nil
			}
			return identity.Identity{}, err
		}
	default:
		return identity.Identity{}, err
	}

	if loggedIn {
		if current.IsAdmin() {
			updated.Role = identity.RoleAdmin
		}
		if err = s.sessions.Save(ctx, updated); err != nil {
			return identity.Identity{}, errors.Wrap(err, "saving session")
		}
	}
	return updated, nil
}

type receiptData struct {
	Name          string
	Description   string
	TransactionID string
	Expiry        string
}

func (s *Store) sendReceipt(usr identity.Identity, kind, description, txID string, expiry *time.Time) {
	if s.mailer == nil || usr.Email == "" {
		return
	}
	data := receiptData{Name: usr.Name, Description: description, TransactionID: txID}
	if expiry != nil {
		data.Expiry = expiry.Format(time.RFC1123)
	}
	s.mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		ReplyTo:      &mail.Address{Name: "Smartlearn Support", Address: s.adminEmail},
		Categories:   []string{"receipt", strings.ToLower(kind)},
		Subject:      "Payment received",
		TemplateName: "receipt",
		TemplateData: data,
	})
}
