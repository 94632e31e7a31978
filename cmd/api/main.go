package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/shelfpos/api"
	"github.com/angelmondragon/shelfpos/internal/app"
	"github.com/angelmondragon/shelfpos/internal/session"
	"github.com/angelmondragon/shelfpos/pkg/config"
	"github.com/angelmondragon/shelfpos/pkg/instance"
	"github.com/angelmondragon/shelfpos/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = app.NewLogger(cfg.App, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"backend":  cfg.Store.Backend,
		"instance": instance.GetID(),
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(ctx, cfg, logg, reg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap store", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logg.Error(context.Background(), "error closing store", err)
		}
	}()

	if err := a.SeedDemoData(ctx); err != nil {
		logg.Error(ctx, "failed to seed demo data", err)
		os.Exit(1)
	}

	sess, err := session.NewManager(cfg.Session, cfg.Password, nil, logg)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	if cfg.Backup.CronEnabled {
		scheduler, err := a.Scheduler()
		if err != nil {
			logg.Error(ctx, "failed to create scheduler", err)
			os.Exit(1)
		}
		go func() {
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "scheduler stopped unexpectedly", err)
			}
		}()
	}

	server := api.NewServer(cfg.App, a.Router(sess))
	logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting api server")

	if err := api.Serve(ctx, server, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
