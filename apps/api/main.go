package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	dig_container "github.com/trezcool/smartlearn/apps/api/di/dig"
	echoapi "github.com/trezcool/smartlearn/apps/api/echo"
	"github.com/trezcool/smartlearn/assets"
	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/core/entitlement"
	"github.com/trezcool/smartlearn/core/identity"
	logsvc "github.com/trezcool/smartlearn/services/logger"
	"github.com/trezcool/smartlearn/storage/localstore"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		storeLoggerParam dig_container.StoreLoggerParam,
		db *localstore.DB,
		store *entitlement.Store,
		validate *validator.Validate,
		translator ut.Translator,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.InitValidators(validate, translator)
		identity.InitValidators(validate, translator)

		core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, apiLogger, false)

		storeLogger := storeLoggerParam.Logger
		defer func() {
			if err := db.Close(); err != nil {
				storeLogger.Fatal("Failed to close", err)
			}
		}()
		defer func() {
			if l, ok := apiLogger.(*logsvc.RollbarLogger); ok {
				l.Close()
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Expiry Sweeper

		ctx, cancel := context.WithCancel(context.Background())
		sweeperDone := entitlement.StartSweeper(ctx, store, conf.SweepInterval, apiLogger)
		defer func() {
			cancel()
			<-sweeperDone
		}()

		// =========================================================================
		// Start Debug Service
		//
		// /debug/vars - Added to the default mux by importing the expvar package.

		if conf.Server.DebugHost != "" {
			// Expose important info under /debug/vars.
			expvar.NewString("build").Set(conf.Build)
			expvar.NewString("env").Set(conf.Env)
			expvar.NewString("storage").Set(conf.Storage.Backend)

			go func() {
				if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
					apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
				}
			}()
		}

		// =========================================================================
		// Start API Service

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
