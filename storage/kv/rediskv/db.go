// Package rediskv stores keys in Redis, so that several API processes share one state.
package rediskv

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/smartlearn/core"
)

type DB struct {
	client    *redis.Client
	namespace string
}

var _ core.KeyValueStore = (*DB)(nil) // interface compliance check

// Open connects to the Redis server at `redisURL` and pings it.
// Every key is prefixed with `namespace` followed by a colon, unless `namespace` is empty.
func Open(ctx context.Context, redisURL, namespace string) (*DB, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis URL")
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	return New(ctx, redis.NewClient(opt), namespace)
}

// New wraps an existing client and pings it.
func New(ctx context.Context, client *redis.Client, namespace string) (*DB, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return &DB{client: client, namespace: namespace}, nil
}

func (db *DB) key(k string) string {
	if db.namespace == "" {
		return k
	}
	return db.namespace + ":" + k
}

func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := db.client.Get(ctx, db.key(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, core.ErrKeyNotFound
		}
		return nil, errors.Wrapf(err, "getting %s", key)
	}
	return val, nil
}

func (db *DB) Set(ctx context.Context, key string, value []byte) error {
	return errors.Wrapf(db.client.Set(ctx, db.key(key), value, 0).Err(), "setting %s", key)
}

func (db *DB) Delete(ctx context.Context, key string) error {
	return errors.Wrapf(db.client.Del(ctx, db.key(key)).Err(), "deleting %s", key)
}

func (db *DB) Close() error { return db.client.Close() }
