package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/smartlearn/assets"
	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/core/identity"
	emailsvc "github.com/trezcool/smartlearn/services/email"
	oauthsvc "github.com/trezcool/smartlearn/services/oauth"
	paymentsvc "github.com/trezcool/smartlearn/services/payment"
	"github.com/trezcool/smartlearn/tests"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	store    *Store
	dir      identity.Repository
	sessions identity.SessionRepository
	payments *paymentsvc.ProcessorMock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	nowFunc = func() time.Time { return testNow }
	ids := 0
	newIDFunc = func() string {
		ids++
		return "id" + string(rune('0'+ids))
	}
	t.Cleanup(func() {
		nowFunc = time.Now
		newIDFunc = uuid.NewString
	})

	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, logger, true)
	emailsvc.ResetSentMessages()

	_, dir, sessions := testutil.OpenLocalStore(t)
	payments := &paymentsvc.ProcessorMock{}
	store, err := NewStore(Options{
		Directory:  dir,
		Sessions:   sessions,
		Payments:   payments,
		Provider:   oauthsvc.NewSimulatedGoogle(core.OAuthConfig{}),
		Mailer:     emailsvc.NewConsoleServiceMock(conf, logger),
		Logger:     logger,
		Validate:   testutil.NewValidator(),
		AdminEmail: conf.AdminEmail,
	})
	require.NoError(t, err)
	return &testEnv{store: store, dir: dir, sessions: sessions, payments: payments}
}

// login logs `email` in and fails the test if it did not work.
func (env *testEnv) login(t *testing.T, email string, role identity.Role) identity.Identity {
	t.Helper()
	usr, err := env.store.Login(context.Background(), email, role)
	require.NoError(t, err)
	return usr
}

func (env *testEnv) stored(t *testing.T, id string) identity.Identity {
	t.Helper()
	usr, err := env.dir.GetByID(context.Background(), id)
	require.NoError(t, err)
	return usr
}

func (env *testEnv) current(t *testing.T) (identity.Identity, bool) {
	t.Helper()
	usr, ok, err := env.store.Current(context.Background())
	require.NoError(t, err)
	return usr, ok
}

func TestNewStore_MissingDeps(t *testing.T) {
	_, err := NewStore(Options{})
	assert.Error(t, err)
}

func TestStore_Login(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		role      identity.Role
		wantID    string
		wantRole  identity.Role
		wantState identity.Status
	}{
		{name: "existing keeps stored role", email: "student@smartlearn.mw", role: identity.RoleTeacher, wantID: "s1", wantRole: identity.RoleStudent, wantState: identity.StatusActive},
		{name: "existing, case-insensitive", email: " TEACHER@smartlearn.mw ", role: identity.RoleStudent, wantID: "t1", wantRole: identity.RoleTeacher, wantState: identity.StatusActive},
		{name: "new student", email: "jane@smartlearn.mw", role: identity.RoleStudent, wantID: "id1", wantRole: identity.RoleStudent, wantState: identity.StatusNone},
		{name: "new teacher", email: "tom@smartlearn.mw", role: identity.RoleTeacher, wantID: "id1", wantRole: identity.RoleTeacher, wantState: identity.StatusActive},
		{name: "new admin request", email: "eve@smartlearn.mw", role: identity.RoleAdmin, wantID: "id1", wantRole: identity.RoleStudent, wantState: identity.StatusNone},
		{name: "reserved email", email: "Support@Smartlearn.com", role: identity.RoleStudent, wantID: identity.AdminID, wantRole: identity.RoleAdmin, wantState: identity.StatusActive},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			usr := env.login(t, tc.email, tc.role)

			assert.Equal(t, tc.wantID, usr.ID)
			assert.Equal(t, tc.wantRole, usr.Role)
			assert.Equal(t, tc.wantState, usr.SubscriptionStatus)

			cur, ok := env.current(t)
			require.True(t, ok)
			assert.Equal(t, usr, cur)

			stored, err := env.dir.GetByEmail(context.Background(), tc.email)
			require.NoError(t, err)
			assert.Equal(t, usr.ID, stored.ID)
		})
	}
}

func TestStore_Login_NewIdentityDefaults(t *testing.T) {
	env := newTestEnv(t)
	usr := env.login(t, "jane.doe@smartlearn.mw", identity.RoleStudent)

	assert.Equal(t, "jane.doe", usr.Name)
	assert.Equal(t, "https://ui-avatars.com/api/?name=jane.doe%40smartlearn.mw&background=random", usr.Avatar)
	assert.Empty(t, usr.UnlockedLiveSessions)
	assert.Empty(t, usr.PurchasedBooks)
	assert.Nil(t, usr.SubscriptionExpiry)
}

func TestStore_Login_AdminOverridesDirectory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// the reserved email wins over a Directory entry holding it with another role
	require.NoError(t, env.dir.Reset(ctx, []identity.Identity{
		identity.New("x1", identity.DefaultAdminEmail, "Impostor", identity.RoleStudent),
	}))
	usr := env.login(t, identity.DefaultAdminEmail, identity.RoleStudent)
	assert.Equal(t, identity.RoleAdmin, usr.Role)
	assert.Equal(t, identity.AdminID, usr.ID)
	assert.Nil(t, usr.SubscriptionExpiry)

	// purchases still work, on the Session only
	ok, err := env.store.BuyBook(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, ok)
	cur, _ := env.current(t)
	assert.Equal(t, []string{"b1"}, cur.PurchasedBooks)
	assert.Equal(t, identity.RoleAdmin, cur.Role)
}

func TestStore_LoginWithProvider(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	usr, err := env.store.LoginWithProvider(ctx)
	require.NoError(t, err)
	assert.Equal(t, "google_id1", usr.ID)
	assert.Equal(t, "Google Student", usr.Name)
	assert.Equal(t, identity.RoleStudent, usr.Role)
	assert.Equal(t, oauthsvc.SimulatedGoogleProfile.Picture, usr.Avatar)

	// second sign-in finds the same account
	again, err := env.store.LoginWithProvider(ctx)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, again.ID)
}

func TestStore_SignUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	usr, err := env.store.SignUp(ctx, identity.NewIdentity{Name: "Tom", Email: "Tom@smartlearn.mw", Role: "teacher", Password: "pwd"})
	require.NoError(t, err)
	assert.Equal(t, "tom@smartlearn.mw", usr.Email)
	assert.Equal(t, identity.RoleTeacher, usr.Role)
	cur, ok := env.current(t)
	require.True(t, ok)
	assert.Equal(t, usr.ID, cur.ID)

	for _, email := range []string{"tom@smartlearn.mw", "support@smartlearn.com"} {
		_, err = env.store.SignUp(ctx, identity.NewIdentity{Name: "X", Email: email, Role: "STUDENT", Password: "pwd"})
		var verr *core.ValidationError
		if assert.True(t, errors.As(err, &verr), email) {
			assert.Equal(t, map[string]string{"email": identity.ErrEmailExists.Error()}, verr.FieldMap())
		}
	}
}

func TestStore_Logout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t, "student@smartlearn.mw", "")

	require.NoError(t, env.store.Logout(ctx))
	require.NoError(t, env.store.Logout(ctx))
	_, ok := env.current(t)
	assert.False(t, ok)

	// the Directory is untouched
	assert.Len(t, mustQueryAll(t, env), 3)
}

func mustQueryAll(t *testing.T, env *testEnv) []identity.Identity {
	t.Helper()
	users, err := env.dir.QueryAll(context.Background())
	require.NoError(t, err)
	return users
}

func TestStore_NoSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	before := mustQueryAll(t, env)

	tests := []struct {
		name string
		op   func() (bool, error)
	}{
		{name: "subscribe", op: func() (bool, error) {
			return env.store.Subscribe(ctx, identity.PlanDaily, core.PaymentMethodAirtel, "0991234567")
		}},
		{name: "unlock", op: func() (bool, error) { return env.store.UnlockLiveSession(ctx, "ls1") }},
		{name: "buyBook", op: func() (bool, error) { return env.store.BuyBook(ctx, "b1") }},
		{name: "buyBooks", op: func() (bool, error) { return env.store.BuyBooks(ctx, []string{"b1", "b2"}) }},
		{name: "entitled", op: func() (bool, error) { return env.store.IsEntitled(ctx, Resource{Kind: Lessons}) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := tc.op()
			assert.NoError(t, err)
			assert.False(t, ok)
		})
	}

	assert.NoError(t, env.store.SweepExpiry(ctx))
	assert.Equal(t, before, mustQueryAll(t, env))
	assert.Empty(t, env.payments.Charges())
}

func TestStore_Subscribe(t *testing.T) {
	for _, plan := range identity.AllPlans {
		t.Run(string(plan), func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			usr := env.login(t, "jane@smartlearn.mw", identity.RoleStudent)

			ok, err := env.store.Subscribe(ctx, plan, "airtel", "0991234567")
			require.NoError(t, err)
			require.True(t, ok)

			wantExpiry := testNow.Add(plan.Duration())
			for _, got := range []identity.Identity{env.stored(t, usr.ID), mustCurrent(t, env)} {
				assert.Equal(t, identity.StatusActive, got.SubscriptionStatus)
				assert.Equal(t, plan, got.CurrentPlan)
				assert.Equal(t, wantExpiry, *got.SubscriptionExpiry)
			}

			charges := env.payments.Charges()
			if assert.Len(t, charges, 1) {
				assert.Equal(t, core.PaymentSubscription, charges[0].Kind)
				assert.Equal(t, "AIRTEL", charges[0].Method)
				assert.Equal(t, string(plan), charges[0].Reference)
			}

			sent := emailsvc.GetSentMessages()
			if assert.Len(t, sent, 1) {
				assert.Equal(t, "jane@smartlearn.mw", sent[0].To[0].Address)
				assert.Contains(t, sent[0].TextContent, "tx-1")
				assert.Contains(t, sent[0].HTMLContent, "tx-1")
				assert.Equal(t, []string{"receipt", core.PaymentSubscription}, sent[0].Categories)
				assert.Equal(t, identity.DefaultAdminEmail, sent[0].ReplyTo.Address)
			}
		})
	}
}

func mustCurrent(t *testing.T, env *testEnv) identity.Identity {
	t.Helper()
	usr, ok := env.current(t)
	require.True(t, ok)
	return usr
}

func TestStore_Subscribe_Replaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t, "student@smartlearn.mw", "") // weekly, 5 days left

	ok, err := env.store.Subscribe(ctx, identity.PlanDaily, "TNM", "0881234567")
	require.NoError(t, err)
	require.True(t, ok)

	usr := mustCurrent(t, env)
	assert.Equal(t, identity.PlanDaily, usr.CurrentPlan)
	assert.Equal(t, testNow.Add(24*time.Hour), *usr.SubscriptionExpiry)
}

func TestStore_Subscribe_InvalidPlan(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "jane@smartlearn.mw", identity.RoleStudent)

	ok, err := env.store.Subscribe(context.Background(), "YEARLY", "AIRTEL", "0991234567")
	assert.False(t, ok)
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Empty(t, env.payments.Charges())
}

func TestStore_PaymentDeclined(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	usr := env.login(t, "jane@smartlearn.mw", identity.RoleStudent)
	env.payments.Decline, env.payments.DeclineReason = true, "insufficient funds"

	ok, err := env.store.Subscribe(ctx, identity.PlanWeekly, "AIRTEL", "0991234567")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.store.BuyBooks(ctx, []string{"b1"})
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, usr, env.stored(t, usr.ID))
	assert.Equal(t, usr, mustCurrent(t, env))
	assert.Empty(t, emailsvc.GetSentMessages())
}

func TestStore_PaymentError(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "jane@smartlearn.mw", identity.RoleStudent)
	env.payments.Err = errors.New("operator unreachable")

	ok, err := env.store.UnlockLiveSession(context.Background(), "ls1")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestStore_UnlockLiveSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t, "student@smartlearn.mw", "")

	for i := 0; i < 2; i++ {
		ok, err := env.store.UnlockLiveSession(ctx, "ls1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, []string{"ls1"}, mustCurrent(t, env).UnlockedLiveSessions)
	assert.Equal(t, []string{"ls1"}, env.stored(t, "s1").UnlockedLiveSessions)
	assert.Len(t, env.payments.Charges(), 1)

	_, err := env.store.UnlockLiveSession(ctx, " ")
	assert.Error(t, err)
}

func TestStore_BuyBooks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t, "student@smartlearn.mw", "")

	ok, err := env.store.BuyBook(ctx, "b1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = env.store.BuyBooks(ctx, []string{"b1", "b2", "b2", "", "b3"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"b1", "b2", "b3"}, mustCurrent(t, env).PurchasedBooks)
	assert.Equal(t, []string{"b1", "b2", "b3"}, env.stored(t, "s1").PurchasedBooks)

	charges := env.payments.Charges()
	if assert.Len(t, charges, 2) {
		assert.Equal(t, core.PaymentBook, charges[0].Kind)
		assert.Equal(t, core.PaymentBooks, charges[1].Kind)
		assert.Equal(t, "b2,b3", charges[1].Reference)
	}

	// everything owned already: no charge
	ok, err = env.store.BuyBooks(ctx, []string{"b3", "b1"})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = env.store.BuyBooks(ctx, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, env.payments.Charges(), 2)
}

func TestStore_LogoutDuringPayment(t *testing.T) {
	env := newTestEnv(t)
	started := make(chan core.PaymentRequest, 1)
	env.payments.Started = started
	env.payments.Wait = make(chan struct{})
	env.login(t, "student@smartlearn.mw", "")

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		ok  bool
		err error
	}
	done := make(chan result)
	go func() {
		ok, err := env.store.BuyBook(ctx, "b9")
		done <- result{ok, err}
	}()

	// the caller gives up and logs out while the payment is pending
	<-started
	cancel()
	require.NoError(t, env.store.Logout(context.Background()))
	close(env.payments.Wait)

	res := <-done
	require.NoError(t, res.err)
	assert.True(t, res.ok)

	_, ok := env.current(t)
	assert.False(t, ok)
	assert.Equal(t, []string{"b9"}, env.stored(t, "s1").PurchasedBooks)
}

func TestStore_SweepExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	expired := testutil.CreateIdentity(t, env.dir, "x1", "late@smartlearn.mw", identity.RoleStudent, testNow.Add(-time.Second))
	other := testutil.CreateIdentity(t, env.dir, "x2", "other@smartlearn.mw", identity.RoleStudent, testNow.Add(-time.Hour))
	env.login(t, expired.Email, "")

	require.NoError(t, env.store.SweepExpiry(ctx))
	assert.Equal(t, identity.StatusExpired, mustCurrent(t, env).SubscriptionStatus)
	assert.Equal(t, identity.StatusExpired, env.stored(t, expired.ID).SubscriptionStatus)
	// only the current identity is swept
	assert.Equal(t, identity.StatusActive, env.stored(t, other.ID).SubscriptionStatus)

	ok, err := env.store.IsEntitled(ctx, Resource{Kind: Lessons})
	require.NoError(t, err)
	assert.False(t, ok)

	// renewing reactivates
	ok, err = env.store.Subscribe(ctx, identity.PlanDaily, "AIRTEL", "0991234567")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, identity.StatusActive, mustCurrent(t, env).SubscriptionStatus)
}

func TestStore_SweepExpiry_NotDue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t, "student@smartlearn.mw", "")
	before := mustCurrent(t, env)

	require.NoError(t, env.store.SweepExpiry(ctx))
	assert.Equal(t, before, mustCurrent(t, env))

	env.login(t, "teacher@smartlearn.mw", "")
	require.NoError(t, env.store.SweepExpiry(ctx))
	assert.Equal(t, identity.StatusActive, mustCurrent(t, env).SubscriptionStatus)
}

func TestStore_SweepExpiry_StaffNeverExpire(t *testing.T) {
	for _, email := range []string{"teacher@smartlearn.mw", identity.DefaultAdminEmail} {
		t.Run(email, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			usr := env.login(t, email, "")

			ok, err := env.store.Subscribe(ctx, identity.PlanDaily, "AIRTEL", "0991234567")
			require.NoError(t, err)
			require.True(t, ok)

			nowFunc = func() time.Time { return testNow.Add(48 * time.Hour) }
			require.NoError(t, env.store.SweepExpiry(ctx))

			assert.Equal(t, identity.StatusActive, mustCurrent(t, env).SubscriptionStatus)
			assert.Equal(t, identity.StatusActive, env.stored(t, usr.ID).SubscriptionStatus)
			for _, kind := range []ResourceKind{Lessons, LiveClass, Dashboard} {
				ok, err = env.store.IsEntitled(ctx, Resource{Kind: kind})
				require.NoError(t, err)
				assert.True(t, ok, kind)
			}
		})
	}
}

func TestStore_Refresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t, "student@smartlearn.mw", "")

	_, err := env.dir.Update(ctx, "s1", func(i *identity.Identity) error {
		i.AddBooks("gift")
		return nil
	})
	require.NoError(t, err)

	usr, ok, err := env.store.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"gift"}, usr.PurchasedBooks)
	assert.Equal(t, usr, mustCurrent(t, env))
}

func TestStore_Grant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t, "jane@smartlearn.mw", identity.RoleStudent)

	usr, err := env.store.Grant(ctx, "JANE@smartlearn.mw", identity.PlanMonthly)
	require.NoError(t, err)
	assert.True(t, usr.HasActiveSubscription(testNow))
	assert.Equal(t, usr, mustCurrent(t, env))
	assert.Empty(t, env.payments.Charges())

	_, err = env.store.Grant(ctx, "nobody@smartlearn.mw", identity.PlanMonthly)
	assert.ErrorIs(t, err, identity.ErrNotFound)
}
