package localstore

import (
	"context"

	"github.com/trezcool/smartlearn/core/identity"
)

type identityRepository struct {
	db *DB
}

var _ identity.Repository = (*identityRepository)(nil) // interface compliance check

func NewIdentityRepository(db *DB) identity.Repository {
	return &identityRepository{db: db}
}

func (repo *identityRepository) load(ctx context.Context) ([]identity.Identity, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.db.loadDirectory(ctx)
}

func (repo *identityRepository) QueryAll(ctx context.Context) ([]identity.Identity, error) {
	return repo.load(ctx)
}

func (repo *identityRepository) Filter(ctx context.Context, filter identity.Filter) ([]identity.Identity, error) {
	users, err := repo.load(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]identity.Identity, 0, len(users))
	for _, usr := range users {
		if filter.Match(usr) {
			filtered = append(filtered, usr)
		}
	}
	return filtered, nil
}

func (repo *identityRepository) GetByID(ctx context.Context, id string) (identity.Identity, error) {
	users, err := repo.load(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	for _, usr := range users {
		if usr.ID == id {
			return usr, nil
		}
	}
	return identity.Identity{}, identity.ErrNotFound
}

func (repo *identityRepository) GetByEmail(ctx context.Context, email string) (identity.Identity, error) {
	users, err := repo.load(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	email = identity.NormalizeEmail(email)
	for _, usr := range users {
		if identity.NormalizeEmail(usr.Email) == email {
			return usr, nil
		}
	}
	return identity.Identity{}, identity.ErrNotFound
}

func (repo *identityRepository) Create(ctx context.Context, usr identity.Identity) (identity.Identity, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	users, err := repo.db.loadDirectory(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	email := identity.NormalizeEmail(usr.Email)
	for _, u := range users {
		if identity.NormalizeEmail(u.Email) == email || u.ID == usr.ID {
			return identity.Identity{}, identity.ErrEmailExists
		}
	}

	usr = usr.Clone()
	usr.Email = email
	if err = repo.db.saveDirectory(ctx, append(users, usr)); err != nil {
		return identity.Identity{}, err
	}
	return usr, nil
}

func (repo *identityRepository) Update(ctx context.Context, id string, mutate func(*identity.Identity) error) (identity.Identity, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	users, err := repo.db.loadDirectory(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	for i := range users {
		if users[i].ID != id {
			continue
		}
		usr := users[i].Clone()
		if err = mutate(&usr); err != nil {
			return users[i], err
		}
		users[i] = usr
		if err = repo.db.saveDirectory(ctx, users); err != nil {
			return identity.Identity{}, err
		}
		return usr, nil
	}
	return identity.Identity{}, identity.ErrNotFound
}

func (repo *identityRepository) Reset(ctx context.Context, users []identity.Identity) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.db.saveDirectory(ctx, users)
}
