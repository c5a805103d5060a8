package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/core/entitlement"
	"github.com/trezcool/smartlearn/core/identity"
	logsvc "github.com/trezcool/smartlearn/services/logger"
	paymentsvc "github.com/trezcool/smartlearn/services/payment"
	"github.com/trezcool/smartlearn/storage/kv"
	"github.com/trezcool/smartlearn/storage/localstore"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	errAndDie(err)
	appLogger := logsvc.NewRollbarLogger(logger, conf)

	// set up storage
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	store, err := kv.Open(ctx, conf)
	errAndDie(err)
	db, err := localstore.Open(ctx, store, appLogger, conf.AdminEmail)
	cancel()
	errAndDie(err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	identity.InitValidators(validate, translator)

	dir := localstore.NewIdentityRepository(db)
	entitlements, err := entitlement.NewStore(entitlement.Options{
		Directory:  dir,
		Sessions:   localstore.NewSessionRepository(db),
		Payments:   paymentsvc.NewSimulatedProcessor(conf.Payment, appLogger),
		Logger:     appLogger,
		Validate:   validate,
		AdminEmail: conf.AdminEmail,
	})
	errAndDie(err)

	// start CLI
	cli := commandLine{
		conf:     conf,
		dir:      dir,
		store:    entitlements,
		validate: validate,
		out:      os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
