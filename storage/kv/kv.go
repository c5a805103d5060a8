// Package kv opens the key-value backend selected by the configuration.
package kv

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/storage/database"
	"github.com/trezcool/smartlearn/storage/kv/memkv"
	"github.com/trezcool/smartlearn/storage/kv/pgkv"
	"github.com/trezcool/smartlearn/storage/kv/rediskv"
)

// Open returns the store for conf.Storage.Backend.
// The postgres backend creates and migrates its database first.
func Open(ctx context.Context, conf *core.Config) (core.KeyValueStore, error) {
	switch conf.Storage.Backend {
	case core.StorageMemory:
		return memkv.Open(), nil

	case core.StorageRedis:
		db, err := rediskv.Open(ctx, conf.Redis.URL, conf.Storage.Namespace)
		if err != nil {
			return nil, errors.Wrap(err, "opening redis store")
		}
		return db, nil

	case core.StoragePostgres:
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(ctx, db, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return pgkv.New(db, conf.Storage.Namespace), nil
	}
	return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
}
