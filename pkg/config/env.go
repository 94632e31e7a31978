package config

const (
	EnvPrefix = "SHELFPOS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "SHELFPOS_APP_ENV"
	EnvPort         = "SHELFPOS_APP_PORT"
	EnvLogLevel     = "SHELFPOS_LOG_LEVEL"
	EnvLogFormat    = "SHELFPOS_LOG_FORMAT"
	EnvLogWarnStack = "SHELFPOS_LOG_WARN_STACK"

	EnvStoreBackend     = "SHELFPOS_STORE_BACKEND"
	EnvStoreAutoMigrate = "SHELFPOS_STORE_AUTO_MIGRATE"

	EnvDBDriver = "SHELFPOS_DB_DRIVER"
	EnvDBDSN    = "SHELFPOS_DB_DSN"

	EnvRedisURL       = "SHELFPOS_REDIS_URL"
	EnvRedisAddr      = "SHELFPOS_REDIS_ADDR"
	EnvRedisNamespace = "SHELFPOS_REDIS_NAMESPACE"

	EnvCategoryCacheTTL = "SHELFPOS_CATEGORY_CACHE_TTL"
	EnvDefaultPageSize  = "SHELFPOS_DEFAULT_PAGE_SIZE"

	EnvBackupDir           = "SHELFPOS_BACKUP_DIR"
	EnvAutoBackupDays      = "SHELFPOS_AUTO_BACKUP_DAYS"
	EnvBackupCheckInterval = "SHELFPOS_BACKUP_CHECK_INTERVAL"
	EnvBackupCronEnabled   = "SHELFPOS_BACKUP_CRON_ENABLED"

	EnvRetentionEnabled = "SHELFPOS_RETENTION_ENABLED"

	EnvSessionPasswordHash = "SHELFPOS_SESSION_PASSWORD_HASH"
	EnvSessionMaxAttempts  = "SHELFPOS_SESSION_MAX_FAILED_ATTEMPTS"
	EnvSessionLockout      = "SHELFPOS_SESSION_LOCKOUT"
	EnvSessionAutoLock     = "SHELFPOS_SESSION_AUTO_LOCK"

	EnvSeedDemoData = "SHELFPOS_SEED_DEMO_DATA"

	EnvCORSOrigins = "SHELFPOS_CORS_ALLOWED_ORIGINS"
)

const (
	StoreBackendSQLite   = "sqlite"
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
	StoreBackendRedis    = "redis"
)
