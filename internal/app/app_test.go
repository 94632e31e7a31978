package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shelfpos/internal/cron"
	"github.com/angelmondragon/shelfpos/internal/session"
	"github.com/angelmondragon/shelfpos/pkg/config"
	"github.com/angelmondragon/shelfpos/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Store.Backend = config.StoreBackendMemory
	cfg.Catalog.DefaultPageSize = 10
	cfg.Catalog.CategoryCacheTTL = time.Minute
	cfg.Backup.Dir = t.TempDir()
	cfg.Backup.AutoBackupDays = 1
	cfg.Backup.CheckInterval = time.Hour
	cfg.Seed.DemoData = true
	cfg.Session.MaxFailedAttempts = 3
	return cfg
}

func TestAppSeedsAndBacksUp(t *testing.T) {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	a, err := New(ctx, testConfig(t), logg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.SeedDemoData(ctx))
	all, err := a.Products.GetAll(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all)

	sched, err := a.Scheduler()
	require.NoError(t, err)
	require.NoError(t, sched.RunJob(ctx, cron.AutoBackupJobName))
	assert.Error(t, sched.RunJob(ctx, cron.OrderRetentionJobName), "retention is off by default")

	files, err := a.Shell.ListFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestAppRouterServesHealth(t *testing.T) {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	cfg := testConfig(t)

	a, err := New(ctx, cfg, logg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	sess, err := session.NewManager(cfg.Session, cfg.Password, time.Now, logg)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.Router(sess).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSeedDemoDataSkippedInProd(t *testing.T) {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	cfg := testConfig(t)
	cfg.App.Env = config.AppEnvProd

	a, err := New(ctx, cfg, logg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.SeedDemoData(ctx))
	all, err := a.Products.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLogFormatFollowsEnv(t *testing.T) {
	assert.Equal(t, "console", logFormat(config.AppConfig{Env: config.AppEnvDev}))
	assert.Equal(t, "json", logFormat(config.AppConfig{Env: config.AppEnvProd}))
	assert.Equal(t, "json", logFormat(config.AppConfig{Env: config.AppEnvDev, LogFormat: "json"}))
}
