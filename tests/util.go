package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/core/identity"
	logsvc "github.com/trezcool/smartlearn/services/logger"
	"github.com/trezcool/smartlearn/storage/database"
	"github.com/trezcool/smartlearn/storage/kv/memkv"
	"github.com/trezcool/smartlearn/storage/localstore"
)

// NewConfig returns the configuration used by tests, without reading the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Env:             "TEST",
		TestMode:        true,
		AppName:         "Smartlearn",
		SecretKey:       "test-secret",
		FrontendBaseURL: "http://localhost:3000",
		AdminEmail:      identity.DefaultAdminEmail,
		SweepInterval:   time.Minute,
		Server: core.ServerConfig{
			Host:               "localhost",
			JWTExpirationDelta: time.Hour,
		},
	}
}

// NewLogger returns a logger that reports nothing.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), NewConfig())
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	identity.InitValidators(validate, translator)
	return validate
}

// OpenLocalStore opens a seeded, in-memory Directory and Session.
func OpenLocalStore(t *testing.T) (*localstore.DB, identity.Repository, identity.SessionRepository) {
	t.Helper()
	db, err := localstore.Open(context.Background(), memkv.Open(), NewLogger(), identity.DefaultAdminEmail)
	if err != nil {
		t.Fatalf("localstore.Open() failed: %v", err)
	}
	return db, localstore.NewIdentityRepository(db), localstore.NewSessionRepository(db)
}

// CreateIdentity registers an Identity in `repo`, with a subscription expiring at `expiry` when set.
func CreateIdentity(
	t *testing.T,
	repo identity.Repository,
	id, email string,
	role identity.Role,
	expiry ...time.Time,
) identity.Identity {
	t.Helper()
	usr := identity.New(id, email, "", role)
	if len(expiry) > 0 {
		exp := expiry[0].UTC()
		usr.SubscriptionStatus = identity.StatusActive
		usr.CurrentPlan = identity.PlanWeekly
		usr.SubscriptionExpiry = &exp
	}
	usr, err := repo.Create(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateIdentity() failed: %v", err)
	}
	return usr
}

// OpenDB opens the test database and migrates it.
// The test is skipped unless TEST_STORAGE_BACKEND is "postgres".
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("TEST_STORAGE_BACKEND") != core.StoragePostgres {
		t.Skip("TEST_STORAGE_BACKEND is not postgres")
	}
	if err := os.Setenv("ENV", "TEST"); err != nil {
		t.Fatal(err)
	}
	conf, err := core.NewConfig()
	if err != nil {
		t.Fatalf("core.NewConfig() failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err = database.CreateIfNotExist(ctx, conf); err != nil {
		t.Fatalf("database.CreateIfNotExist() failed: %v", err)
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	if err = database.Migrate(ctx, db, "up"); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
