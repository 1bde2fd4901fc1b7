package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Settlement   SettlementConfig
	Worker       WorkerConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Settlement.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GEORGY_APP_ENV" required:"true"`
	Port         string `envconfig:"GEORGY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GEORGY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GEORGY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GEORGY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GEORGY_DB_DSN"`
	Driver string `envconfig:"GEORGY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GEORGY_DB_HOST"`
	LegacyPort     int    `envconfig:"GEORGY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GEORGY_DB_USER"`
	LegacyPassword string `envconfig:"GEORGY_DB_PASSWORD"`
	LegacyName     string `envconfig:"GEORGY_DB_NAME"`
	LegacySSLMode  string `envconfig:"GEORGY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GEORGY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GEORGY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GEORGY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GEORGY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GEORGY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GEORGY_REDIS_ADDR"`
	Password     string        `envconfig:"GEORGY_REDIS_PASSWORD"`
	DB           int           `envconfig:"GEORGY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GEORGY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GEORGY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GEORGY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GEORGY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GEORGY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SettlementConfig holds the business constants of the settlement engine.
type SettlementConfig struct {
	// AgentCommissionRate is the share of the delivery fee credited to the
	// delivery agent when a shipment completes.
	AgentCommissionRate float64 `envconfig:"GEORGY_AGENT_COMMISSION_RATE" default:"0.8"`
	// PayoutMaxRetries bounds provider attempts before a payout is failed.
	PayoutMaxRetries int `envconfig:"GEORGY_PAYOUT_MAX_RETRIES" default:"3"`
	// FallbackPlatformPercentage applies when no revenue share scheme matches.
	FallbackPlatformPercentage float64 `envconfig:"GEORGY_FALLBACK_PLATFORM_PERCENTAGE" default:"0.05"`
}

func (s SettlementConfig) validate() error {
	if s.AgentCommissionRate < 0 || s.AgentCommissionRate > 1 {
		return fmt.Errorf("agent commission rate must be within [0,1], got %v", s.AgentCommissionRate)
	}
	if s.FallbackPlatformPercentage < 0 || s.FallbackPlatformPercentage > 1 {
		return fmt.Errorf("fallback platform percentage must be within [0,1], got %v", s.FallbackPlatformPercentage)
	}
	if s.PayoutMaxRetries < 1 {
		return fmt.Errorf("payout max retries must be positive, got %d", s.PayoutMaxRetries)
	}
	return nil
}

type WorkerConfig struct {
	Interval    time.Duration `envconfig:"GEORGY_WORKER_INTERVAL" default:"1m"`
	BatchSize   int           `envconfig:"GEORGY_WORKER_BATCH_SIZE" default:"50"`
	LockTTL     time.Duration `envconfig:"GEORGY_WORKER_LOCK_TTL" default:"5m"`
	MetricsPort string        `envconfig:"GEORGY_WORKER_METRICS_PORT" default:"9090"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GEORGY_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GEORGY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"GEORGY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GEORGY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic string `envconfig:"GEORGY_PUBSUB_SETTLEMENT_TOPIC" default:"georgy-settlement-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GEORGY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GEORGY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GEORGY_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
