// Package app wires the store, services and scheduler shared by the
// binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/shelfpos/api/controllers"
	"github.com/angelmondragon/shelfpos/api/routes"
	"github.com/angelmondragon/shelfpos/internal/backup"
	"github.com/angelmondragon/shelfpos/internal/categories"
	"github.com/angelmondragon/shelfpos/internal/checkout"
	"github.com/angelmondragon/shelfpos/internal/cron"
	"github.com/angelmondragon/shelfpos/internal/kv"
	"github.com/angelmondragon/shelfpos/internal/orders"
	"github.com/angelmondragon/shelfpos/internal/products"
	"github.com/angelmondragon/shelfpos/internal/seed"
	"github.com/angelmondragon/shelfpos/internal/session"
	"github.com/angelmondragon/shelfpos/internal/statistics/dashboard"
	"github.com/angelmondragon/shelfpos/pkg/config"
	"github.com/angelmondragon/shelfpos/pkg/logger"
	"github.com/angelmondragon/shelfpos/pkg/metrics"
)

// NewLogger builds the process logger from the app config.
func NewLogger(cfg config.AppConfig, service string) *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.LogLevel),
		WarnStack:   cfg.LogWarnStack,
		Format:      logFormat(cfg),
	})
}

// logFormat is the configured format, else console in dev and json elsewhere.
func logFormat(cfg config.AppConfig) string {
	if cfg.LogFormat != "" {
		return cfg.LogFormat
	}
	if cfg.IsDev() {
		return "console"
	}
	return "json"
}

// App holds one opened store and every service built on it.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry

	Store     *kv.Store
	Resources *kv.Resources

	Categories categories.Service
	Products   products.Service
	Orders     orders.Service
	Dashboard  *dashboard.Service
	Checkout   *checkout.Service
	Backup     *backup.Pipeline
	Shell      *backup.LocalShell

	now func() time.Time
}

// New opens the configured store and builds the services. When reg is nil
// a fresh registry is created.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger, reg *prometheus.Registry) (*App, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	now := time.Now

	store, res, err := kv.Open(ctx, cfg, logg, metrics.NewStoreMetrics(reg))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &App{Config: cfg, Logger: logg, Registry: reg, Store: store, Resources: res, now: now}
	if err := a.build(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	var err error
	a.Categories, err = categories.NewService(a.Store, categories.Options{
		CacheTTL: a.Config.Catalog.CategoryCacheTTL,
		Now:      a.now,
		Logger:   a.Logger,
	})
	if err != nil {
		return err
	}
	a.Products, err = products.NewService(a.Store, a.Categories, products.Options{Now: a.now, Logger: a.Logger})
	if err != nil {
		return err
	}
	a.Orders, err = orders.NewService(a.Store, orders.Options{Now: a.now, Logger: a.Logger})
	if err != nil {
		return err
	}
	a.Dashboard, err = dashboard.NewService(a.Orders, a.Products, a.Categories, a.now)
	if err != nil {
		return err
	}
	a.Checkout, err = checkout.NewService(a.Products, a.Categories, a.Orders, a.Logger)
	if err != nil {
		return err
	}
	a.Backup, err = backup.NewPipeline(backup.Deps{
		Store:      a.Store,
		Categories: a.Categories,
		Products:   a.Products,
		Orders:     a.Orders,
	}, backup.Options{Now: a.now, Logger: a.Logger})
	if err != nil {
		return err
	}
	a.Shell, err = backup.NewLocalShell(a.Config.Backup.Dir, a.now)
	return err
}

// SeedDemoData fills an empty store with the demo catalog when enabled.
// Production never gets demo data.
func (a *App) SeedDemoData(ctx context.Context) error {
	if !a.Config.Seed.DemoData {
		return nil
	}
	if a.Config.App.IsProd() {
		a.Logger.Warn(ctx, "demo data seeding is disabled in prod")
		return nil
	}
	if _, err := seed.Run(ctx, a.Store, a.Categories, a.Products, a.Logger); err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}
	return nil
}

// Scheduler builds the cron service with the auto-backup job and, when
// retention is on, the order purge. The lock is shared through redis when
// it is configured.
func (a *App) Scheduler() (*cron.Service, error) {
	registry := cron.NewRegistry()

	backupJob, err := cron.NewAutoBackupJob(cron.AutoBackupJobParams{
		Logger:   a.Logger,
		Pipeline: a.Backup,
		Shell:    a.Shell,
		MaxAge:   a.Config.Backup.MaxAge(),
		Now:      a.now,
	})
	if err != nil {
		return nil, err
	}
	registry.Register(backupJob)

	if a.Config.Retention.Enabled {
		retention, err := cron.NewOrderRetentionJob(a.Logger, a.Orders)
		if err != nil {
			return nil, err
		}
		registry.Register(retention)
	}

	var lock cron.Lock = &cron.LocalLock{}
	if a.Resources != nil && a.Resources.Redis != nil {
		lock, err = cron.NewRedisLock(a.Resources.Redis, a.Resources.Redis.LockKey(cron.LockName), 0)
		if err != nil {
			return nil, err
		}
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   a.Logger,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(a.Registry),
		Interval: a.Config.Backup.CheckInterval,
		Now:      a.now,
	})
}

// Router builds the HTTP handler around the services and sess.
func (a *App) Router(sess *session.Manager) http.Handler {
	ready := map[string]controllers.Pinger{"store": a.Store}
	if a.Resources != nil && a.Resources.Redis != nil {
		ready["redis"] = a.Resources.Redis
	}
	return routes.NewRouter(routes.Deps{
		Config:      a.Config,
		Logger:      a.Logger,
		Ready:       ready,
		Gatherer:    a.Registry,
		HTTPMetrics: metrics.NewHTTPMetrics(a.Registry),
		Categories:  a.Categories,
		Products:    a.Products,
		Orders:      a.Orders,
		Dashboard:   a.Dashboard,
		Checkout:    a.Checkout,
		Backup:      a.Backup,
		Shell:       a.Shell,
		Session:     sess,
		Now:         a.now,
	})
}

// Close releases the store connections.
func (a *App) Close() error {
	var err error
	if a.Resources != nil {
		err = multierr.Append(err, a.Resources.Close())
	}
	if a.Resources == nil || (a.Resources.DB == nil && a.Resources.Redis == nil) {
		err = multierr.Append(err, a.Store.Close())
	}
	return err
}
