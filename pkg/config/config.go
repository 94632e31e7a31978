package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Store     StoreConfig
	DB        DBConfig
	Redis     RedisConfig
	Catalog   CatalogConfig
	Backup    BackupConfig
	Retention RetentionConfig
	Session   SessionConfig
	Password  PasswordConfig
	Seed      SeedConfig
	HTTP      HTTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case StoreBackendSQLite, StoreBackendPostgres, StoreBackendMemory:
	case StoreBackendRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s or %s is required for the redis store", EnvRedisURL, EnvRedisAddr)
		}
	default:
		return fmt.Errorf("unknown %s %q", EnvStoreBackend, c.Store.Backend)
	}
	if c.Store.Backend == StoreBackendPostgres {
		c.DB.Driver = StoreBackendPostgres
		if c.DB.DSN == "" {
			return fmt.Errorf("%s is required for the postgres store", EnvDBDSN)
		}
	}
	if c.Backup.AutoBackupDays < 0 {
		return fmt.Errorf("%s must be >= 0", EnvAutoBackupDays)
	}
	if c.Session.MaxFailedAttempts <= 0 {
		return fmt.Errorf("%s must be > 0", EnvSessionMaxAttempts)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"SHELFPOS_APP_ENV" default:"dev"`
	Host         string `envconfig:"SHELFPOS_APP_HOST" default:"127.0.0.1"`
	Port         string `envconfig:"SHELFPOS_APP_PORT" default:"8765"`
	LogLevel     string `envconfig:"SHELFPOS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"SHELFPOS_LOG_FORMAT"`
	LogWarnStack bool   `envconfig:"SHELFPOS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StoreConfig struct {
	Backend     string `envconfig:"SHELFPOS_STORE_BACKEND" default:"sqlite"`
	AutoMigrate bool   `envconfig:"SHELFPOS_STORE_AUTO_MIGRATE" default:"true"`
}

type DBConfig struct {
	Driver string `envconfig:"SHELFPOS_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"SHELFPOS_DB_DSN" default:"file:shelfpos.db?_foreign_keys=on&_busy_timeout=5000"`

	MaxOpenConns    int           `envconfig:"SHELFPOS_DB_MAX_OPEN_CONNS" default:"1"`
	MaxIdleConns    int           `envconfig:"SHELFPOS_DB_MAX_IDLE_CONNS" default:"1"`
	ConnMaxLifetime time.Duration `envconfig:"SHELFPOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHELFPOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHELFPOS_REDIS_URL"`
	Address      string        `envconfig:"SHELFPOS_REDIS_ADDR"`
	Password     string        `envconfig:"SHELFPOS_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHELFPOS_REDIS_DB" default:"0"`
	Namespace    string        `envconfig:"SHELFPOS_REDIS_NAMESPACE" default:"shelfpos"`
	PoolSize     int           `envconfig:"SHELFPOS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHELFPOS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHELFPOS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHELFPOS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHELFPOS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type CatalogConfig struct {
	CategoryCacheTTL time.Duration `envconfig:"SHELFPOS_CATEGORY_CACHE_TTL" default:"5m"`
	DefaultPageSize  int           `envconfig:"SHELFPOS_DEFAULT_PAGE_SIZE" default:"10"`
}

type BackupConfig struct {
	Dir            string        `envconfig:"SHELFPOS_BACKUP_DIR" default:"backups"`
	AutoBackupDays int           `envconfig:"SHELFPOS_AUTO_BACKUP_DAYS" default:"1"`
	CheckInterval  time.Duration `envconfig:"SHELFPOS_BACKUP_CHECK_INTERVAL" default:"1h"`
	CronEnabled    bool          `envconfig:"SHELFPOS_BACKUP_CRON_ENABLED" default:"true"`
}

// MaxAge is the age after which the newest backup is considered stale.
func (b BackupConfig) MaxAge() time.Duration {
	if b.AutoBackupDays <= 0 {
		return 0
	}
	return time.Duration(b.AutoBackupDays) * 24 * time.Hour
}

type RetentionConfig struct {
	Enabled bool `envconfig:"SHELFPOS_RETENTION_ENABLED" default:"false"`
}

type SessionConfig struct {
	PasswordHash      string        `envconfig:"SHELFPOS_SESSION_PASSWORD_HASH"`
	MaxFailedAttempts int           `envconfig:"SHELFPOS_SESSION_MAX_FAILED_ATTEMPTS" default:"5"`
	Lockout           time.Duration `envconfig:"SHELFPOS_SESSION_LOCKOUT" default:"5m"`
	AutoLock          time.Duration `envconfig:"SHELFPOS_SESSION_AUTO_LOCK" default:"5m"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SHELFPOS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SHELFPOS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SHELFPOS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SHELFPOS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SHELFPOS_ARGON_KEY_LEN" default:"32"`
}

type SeedConfig struct {
	DemoData bool `envconfig:"SHELFPOS_SEED_DEMO_DATA" default:"false"`
}

type HTTPConfig struct {
	AllowedOrigins []string `envconfig:"SHELFPOS_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,app://."`
}
