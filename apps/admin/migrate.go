package main

import (
	"context"
	"errors"

	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/storage/database"
)

var (
	openDBFunc  = database.Open    // mockable
	migrateFunc = database.Migrate // mockable

	errNotPostgres = errors.New("migrations only apply to the postgres storage backend")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.conf.Storage.Backend != core.StoragePostgres {
		return errNotPostgres
	}

	ctx := context.Background()
	db, err := openDBFunc(ctx, cli.conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return migrateFunc(ctx, db, args[0], args[1:]...)
}
