package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/smartlearn/apps/api/echo"
	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/core/entitlement"
	"github.com/trezcool/smartlearn/core/identity"
	"github.com/trezcool/smartlearn/core/tutor"
	emailsvc "github.com/trezcool/smartlearn/services/email"
	logsvc "github.com/trezcool/smartlearn/services/logger"
	oauthsvc "github.com/trezcool/smartlearn/services/oauth"
	paymentsvc "github.com/trezcool/smartlearn/services/payment"
	textgensvc "github.com/trezcool/smartlearn/services/textgen"
	"github.com/trezcool/smartlearn/storage/kv"
	"github.com/trezcool/smartlearn/storage/localstore"
)

type StoreLoggerParam struct {
	dig.In
	Logger core.Logger `name:"storeLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(conf.RollbarToken != "" && !conf.Debug)
	return logger
}

func newStoreLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "STORE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(conf.RollbarToken != "" && !conf.Debug)
	return logger
}

func newLocalStore(conf *core.Config, loggerParam StoreLoggerParam) *localstore.DB {
	setUp := func() (*localstore.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		store, err := kv.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		db, err := localstore.Open(ctx, store, loggerParam.Logger, conf.AdminEmail)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up %s storage: %v", conf.Storage.Backend, err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newPaymentProcessor(conf *core.Config, logger core.Logger) core.PaymentProcessor {
	return paymentsvc.NewSimulatedProcessor(conf.Payment, logger)
}

func newIdentityProvider(conf *core.Config) core.IdentityProvider {
	return oauthsvc.NewSimulatedGoogle(conf.OAuth)
}

// newTutor answers with its fallbacks when the generator cannot be set up.
func newTutor(conf *core.Config, logger core.Logger) *tutor.Service {
	gen, err := textgensvc.NewGeminiGenerator(context.Background(), conf.Gemini)
	if err != nil {
		logger.Error(fmt.Sprintf("setting up text generator: %v", err), err)
	}
	return tutor.NewService(gen, conf.AppName, logger)
}

type storeParams struct {
	dig.In
	Conf      *core.Config
	Logger    core.Logger
	Directory identity.Repository
	Sessions  identity.SessionRepository
	Payments  core.PaymentProcessor
	Provider  core.IdentityProvider
	Mailer    core.EmailService
	Validate  *validator.Validate
}

func newEntitlementStore(p storeParams) (*entitlement.Store, error) {
	return entitlement.NewStore(entitlement.Options{
		Directory:  p.Directory,
		Sessions:   p.Sessions,
		Payments:   p.Payments,
		Provider:   p.Provider,
		Mailer:     p.Mailer,
		Logger:     p.Logger,
		Validate:   p.Validate,
		AdminEmail: p.Conf.AdminEmail,
	})
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Store      *entitlement.Store
	Tutor      *tutor.Service
	Validate   *validator.Validate
	Translator ut.Translator
}

func newServerOptions(p serverParams) *echoapi.Options {
	return &echoapi.Options{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Store:      p.Store,
		Tutor:      p.Tutor,
		Validate:   p.Validate,
		Translator: p.Translator,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStoreLogger, dig.Name("storeLogger")))
	must(c.Provide(newLocalStore))
	must(c.Provide(localstore.NewIdentityRepository))
	must(c.Provide(localstore.NewSessionRepository))
	must(c.Provide(newEmailService))
	must(c.Provide(newPaymentProcessor))
	must(c.Provide(newIdentityProvider))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newEntitlementStore))
	must(c.Provide(newTutor))
	must(c.Provide(newServerOptions))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
