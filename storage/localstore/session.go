package localstore

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/core/identity"
)

type sessionRepository struct {
	db *DB
}

var _ identity.SessionRepository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) identity.SessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) Current(ctx context.Context) (identity.Identity, error) {
	raw, err := repo.db.kv.Get(ctx, SessionKey)
	switch errors.Cause(err) {
	case nil:
	case core.ErrKeyNotFound:
		return identity.Identity{}, identity.ErrNoSession
	default:
		return identity.Identity{}, errors.Wrap(err, "loading session")
	}

	var usr identity.Identity
	if err = json.Unmarshal(raw, &usr); err != nil || usr.ID == "" {
		repo.db.logger.Warn("localstore: unreadable session, logging out", err)
		if err = repo.Clear(ctx); err != nil {
			return identity.Identity{}, err
		}
		return identity.Identity{}, identity.ErrNoSession
	}
	return usr, nil
}

func (repo *sessionRepository) Save(ctx context.Context, usr identity.Identity) error {
	raw, err := json.Marshal(usr)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	return errors.Wrap(repo.db.kv.Set(ctx, SessionKey, raw), "saving session")
}

func (repo *sessionRepository) Clear(ctx context.Context) error {
	return errors.Wrap(repo.db.kv.Delete(ctx, SessionKey), "clearing session")
}
