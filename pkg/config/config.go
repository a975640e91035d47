package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "COPIRENT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "COPIRENT_DB_DSN"
	EnvDBHost = "COPIRENT_DB_HOST"
	EnvDBUser = "COPIRENT_DB_USER"
	EnvDBName = "COPIRENT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Password PasswordConfig
	PII      PIIConfig
	Billing  BillingConfig
	Checkout CheckoutRateLimitConfig
	Reports  ReportsConfig
	SMTP     SMTPConfig
	Features FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COPIRENT_APP_ENV" required:"true"`
	Port         string `envconfig:"COPIRENT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COPIRENT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COPIRENT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"COPIRENT_DB_DSN"`
	Driver string `envconfig:"COPIRENT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COPIRENT_DB_HOST"`
	LegacyPort     int    `envconfig:"COPIRENT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COPIRENT_DB_USER"`
	LegacyPassword string `envconfig:"COPIRENT_DB_PASSWORD"`
	LegacyName     string `envconfig:"COPIRENT_DB_NAME"`
	LegacySSLMode  string `envconfig:"COPIRENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COPIRENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COPIRENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COPIRENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COPIRENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COPIRENT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COPIRENT_REDIS_ADDR"`
	Password     string        `envconfig:"COPIRENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"COPIRENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COPIRENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COPIRENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COPIRENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COPIRENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COPIRENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COPIRENT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COPIRENT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COPIRENT_JWT_EXPIRATION_MINUTES" default:"720"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"COPIRENT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"COPIRENT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"COPIRENT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"COPIRENT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"COPIRENT_ARGON_KEY_LEN" default:"32"`
}

// PIIConfig carries the server secret the identity-number cipher derives its
// key from. Rotating the secret orphans existing ciphertexts, so treat it
// like a database credential.
type PIIConfig struct {
	Secret string `envconfig:"COPIRENT_PII_SECRET" required:"true"`
}

// BillingConfig holds money knobs that are policy rather than data.
type BillingConfig struct {
	TaxRatePercent float64 `envconfig:"COPIRENT_TAX_RATE_PERCENT" default:"19"`
}

type CheckoutRateLimitConfig struct {
	Window     time.Duration `envconfig:"COPIRENT_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit    int           `envconfig:"COPIRENT_CHECKOUT_RATE_LIMIT_IP_LIMIT" default:"10"`
	EmailLimit int           `envconfig:"COPIRENT_CHECKOUT_RATE_LIMIT_EMAIL_LIMIT" default:"5"`
}

type ReportsConfig struct {
	CacheTTL time.Duration `envconfig:"COPIRENT_REPORTS_CACHE_TTL" default:"5m"`
}

type SMTPConfig struct {
	Host     string `envconfig:"COPIRENT_SMTP_HOST"`
	Port     int    `envconfig:"COPIRENT_SMTP_PORT" default:"587"`
	Username string `envconfig:"COPIRENT_SMTP_USERNAME"`
	Password string `envconfig:"COPIRENT_SMTP_PASSWORD"`
	From     string `envconfig:"COPIRENT_SMTP_FROM"`
	AdminTo  string `envconfig:"COPIRENT_SMTP_ADMIN_TO"`
}

// Enabled reports whether outbound mail is configured at all. The core never
// fails a request because mail is off.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COPIRENT_AUTO_MIGRATE" default:"false"`
}


func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
