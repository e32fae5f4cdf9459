package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "relist"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "RELIST_DB_DSN"
	EnvDBHost = "RELIST_DB_HOST"
	EnvDBUser = "RELIST_DB_USER"
	EnvDBName = "RELIST_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Sendgrid     SendgridConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Stripe.FeePercentDecimal(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"RELIST_APP_ENV" required:"true"`
	Port         string   `envconfig:"RELIST_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"RELIST_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"RELIST_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"RELIST_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"RELIST_DB_DSN"`
	Driver string `envconfig:"RELIST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RELIST_DB_HOST"`
	LegacyPort     int    `envconfig:"RELIST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RELIST_DB_USER"`
	LegacyPassword string `envconfig:"RELIST_DB_PASSWORD"`
	LegacyName     string `envconfig:"RELIST_DB_NAME"`
	LegacySSLMode  string `envconfig:"RELIST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RELIST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RELIST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RELIST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RELIST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RELIST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RELIST_REDIS_ADDR"`
	Password     string        `envconfig:"RELIST_REDIS_PASSWORD"`
	DB           int           `envconfig:"RELIST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RELIST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RELIST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RELIST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RELIST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RELIST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RELIST_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RELIST_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"RELIST_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type StripeConfig struct {
	APIKey              string        `envconfig:"RELIST_STRIPE_API_KEY"`
	Secret              string        `envconfig:"RELIST_STRIPE_SECRET"`
	Env                 string        `envconfig:"RELIST_STRIPE_ENV" default:"test"`
	FeePercent          string        `envconfig:"RELIST_STRIPE_FEE_PERCENT" default:"2.9"`
	AccountType         string        `envconfig:"RELIST_STRIPE_ACCOUNT_TYPE" default:"express"`
	EventIdempotencyTTL time.Duration `envconfig:"RELIST_STRIPE_EVENT_IDEMPOTENCY_TTL" default:"72h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// FeePercentDecimal parses the configured platform fee percentage. The fee is
// configured as a decimal string so money math never passes through a float.
func (s StripeConfig) FeePercentDecimal() (decimal.Decimal, error) {
	raw := strings.TrimSpace(s.FeePercent)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("stripe fee percent is required")
	}
	pct, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing stripe fee percent %q: %w", raw, err)
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("stripe fee percent %q out of range", raw)
	}
	return pct, nil
}

type SendgridConfig struct {
	APIKey      string `envconfig:"RELIST_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"RELIST_SENDGRID_FROM_EMAIL"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RELIST_AUTO_MIGRATE" default:"false"`
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
