package kv

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shelfpos/pkg/config"
	"github.com/angelmondragon/shelfpos/pkg/db"
	"github.com/angelmondragon/shelfpos/pkg/logger"
	"github.com/angelmondragon/shelfpos/pkg/metrics"
	"github.com/angelmondragon/shelfpos/pkg/migrate"
	pkgredis "github.com/angelmondragon/shelfpos/pkg/redis"
	"go.uber.org/multierr"
)

// Resources are the connections opened for a store; either may be nil.
type Resources struct {
	DB    *db.Client
	Redis *pkgredis.Client
}

// Open builds the store selected by cfg.Store.Backend. Redis is also
// connected when configured so callers can use it for the scheduler lock.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger, m *metrics.StoreMetrics) (*Store, *Resources, error) {
	res := &Resources{}

	if cfg.Redis.Enabled() {
		client, err := pkgredis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, nil, err
		}
		res.Redis = client
	}

	var backend Backend
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		backend = NewMemoryBackend()
	case config.StoreBackendRedis:
		if res.Redis == nil {
			return nil, nil, fmt.Errorf("redis store selected without redis config")
		}
		backend = NewRedisBackend(res.Redis)
	case config.StoreBackendSQLite, config.StoreBackendPostgres:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			res.close()
			return nil, nil, err
		}
		res.DB = client
		if err := migrate.MaybeAutoRun(ctx, cfg, logg, client); err != nil {
			res.close()
			return nil, nil, err
		}
		backend = NewGormBackend(client)
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	store, err := NewStore(backend, m)
	if err != nil {
		res.close()
		return nil, nil, err
	}
	logg.Info(logg.WithField(ctx, "backend", cfg.Store.Backend), "object store ready")
	return store, res, nil
}

// Close releases whichever connections were opened. Callers close these
// rather than the Store so shared clients are closed once.
func (r *Resources) Close() error {
	return r.close()
}

func (r *Resources) close() error {
	if r == nil {
		return nil
	}
	var err error
	if r.DB != nil {
		err = multierr.Append(err, r.DB.Close())
	}
	if r.Redis != nil {
		err = multierr.Append(err, r.Redis.Close())
	}
	return err
}
