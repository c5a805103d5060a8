// Package localstore keeps the Directory and the Session as JSON documents in a key-value store,
// under the keys the web client has always used.
package localstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/core/identity"
)

// Storage keys
const (
	DirectoryKey = "sl_db_users"
	SessionKey   = "sl_user"
)

var nowFunc = time.Now // mockable

type DB struct {
	kv         core.KeyValueStore
	logger     core.Logger
	adminEmail string

	// mu guards read-modify-write cycles of the Directory document.
	mu sync.Mutex
}

// Open wraps `kv`, seeding the Directory if it is missing or unreadable.
func Open(ctx context.Context, kv core.KeyValueStore, logger core.Logger, adminEmail string) (*DB, error) {
	db := &DB{kv: kv, logger: logger, adminEmail: adminEmail}

	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.loadDirectory(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error { return db.kv.Close() }

// loadDirectory must be called with db.mu held.
func (db *DB) loadDirectory(ctx context.Context) ([]identity.Identity, error) {
	raw, err := db.kv.Get(ctx, DirectoryKey)
	switch errors.Cause(err) {
	case nil:
	case core.ErrKeyNotFound:
		return db.reseed(ctx)
	default:
		return nil, errors.Wrap(err, "loading directory")
	}

	var users []identity.Identity
	if err = json.Unmarshal(raw, &users); err != nil {
		db.logger.Warn("localstore: unreadable directory, reseeding", err)
		return db.reseed(ctx)
	}
	return users, nil
}

func (db *DB) reseed(ctx context.Context) ([]identity.Identity, error) {
	users := identity.Seed(nowFunc(), db.adminEmail)
	if err := db.saveDirectory(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (db *DB) saveDirectory(ctx context.Context, users []identity.Identity) error {
	if users == nil {
		users = []identity.Identity{}
	}
	raw, err := json.Marshal(users)
	if err != nil {
		return errors.Wrap(err, "encoding directory")
	}
	return errors.Wrap(db.kv.Set(ctx, DirectoryKey, raw), "saving directory")
}
