// Package pgkv stores keys in the kv_entries table of a PostgreSQL database.
package pgkv

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/smartlearn/core"
)

const (
	getQuery    = `SELECT value FROM kv_entries WHERE key = $1`
	setQuery    = `INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, now()) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	deleteQuery = `DELETE FROM kv_entries WHERE key = $1`
)

type DB struct {
	db        *sqlx.DB
	namespace string
}

var _ core.KeyValueStore = (*DB)(nil) // interface compliance check

// New expects the kv_entries table to be migrated already.
func New(db *sqlx.DB, namespace string) *DB {
	return &DB{db: db, namespace: namespace}
}

func (db *DB) key(k string) string {
	if db.namespace == "" {
		return k
	}
	return db.namespace + ":" + k
}

func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	if err := db.db.GetContext(ctx, &val, getQuery, db.key(key)); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrKeyNotFound
		}
		return nil, errors.Wrapf(err, "getting %s", key)
	}
	return val, nil
}

func (db *DB) Set(ctx context.Context, key string, value []byte) error {
	_, err := db.db.ExecContext(ctx, setQuery, db.key(key), value)
	return errors.Wrapf(err, "setting %s", key)
}

func (db *DB) Delete(ctx context.Context, key string) error {
	_, err := db.db.ExecContext(ctx, deleteQuery, db.key(key))
	return errors.Wrapf(err, "deleting %s", key)
}

func (db *DB) Close() error { return db.db.Close() }
