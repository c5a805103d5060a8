package core

import (
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type (
	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		AdminEmail       string
		SweepInterval    time.Duration
		SendgridApiKey   string
		RollbarToken     string
		defaultFromEmail string

		Server   ServerConfig
		Payment  PaymentConfig
		OAuth    OAuthConfig
		Storage  StorageConfig
		Redis    RedisConfig
		Database DatabaseConfig
		Gemini   GeminiConfig
	}

	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string // the debug server is off when empty
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	PaymentConfig struct {
		SubscribeLatency time.Duration
		PurchaseLatency  time.Duration
	}

	OAuthConfig struct {
		Latency time.Duration
	}

	StorageConfig struct {
		Backend string
		// Namespace prefixes every key so several client installations can share one backend.
		Namespace string
	}

	RedisConfig struct {
		URL string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	GeminiConfig struct {
		ApiKey string
		Model  string
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, dbc.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Smartlearn")
	v.SetDefault("secretKey", "k2x8-vn$)q1p+z7=hf&ax0s(e!w)#*d5(#rm4t^$dlnh3qkz")
	v.SetDefault("defaultFromEmail", "Smartlearn <noreply@smartlearn.mw>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("adminEmail", "support@smartlearn.com")
	v.SetDefault("sweepInterval", time.Minute)
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", "")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("payment.subscribeLatency", 2*time.Second)
	v.SetDefault("payment.purchaseLatency", 1500*time.Millisecond)
	v.SetDefault("oauth.latency", 1500*time.Millisecond)

	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("storage.namespace", "")
	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "smartlearn")
	v.SetDefault("database.user", "smartlearn")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("gemini.apiKey", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
}

// NewConfig reads the configuration from the environment, prefixed by the upper-cased ENV
// (DEV by default; TEST, QA, PROD), after loading config/.env.<env> if it exists.
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(CleanString(os.Getenv("ENV")))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		AdminEmail:       CleanString(v.GetString("adminEmail"), true /* lower */),
		SweepInterval:    v.GetDuration("sweepInterval"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Address:            v.GetString("server.address"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Payment: PaymentConfig{
			SubscribeLatency: v.GetDuration("payment.subscribeLatency"),
			PurchaseLatency:  v.GetDuration("payment.purchaseLatency"),
		},
		OAuth: OAuthConfig{
			Latency: v.GetDuration("oauth.latency"),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(v.GetString("storage.backend")),
			Namespace: v.GetString("storage.namespace"),
		},
		Redis: RedisConfig{
			URL: v.GetString("redis.url"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Gemini: GeminiConfig{
			ApiKey: v.GetString("gemini.apiKey"),
			Model:  v.GetString("gemini.model"),
		},
	}

	switch conf.Storage.Backend {
	case StorageMemory, StorageRedis, StoragePostgres:
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
	return conf, nil
}
