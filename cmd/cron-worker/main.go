package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/shelfpos/internal/app"
	"github.com/angelmondragon/shelfpos/pkg/config"
	"github.com/angelmondragon/shelfpos/pkg/instance"
	"github.com/angelmondragon/shelfpos/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	once := flag.Bool("once", false, "run a single cycle and exit")
	job := flag.String("job", "", "run only the named job and exit (auto-backup|order-retention)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = app.NewLogger(cfg.App, "cron-worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"backend":  cfg.Store.Backend,
		"instance": instance.GetID(),
	})

	a, err := app.New(ctx, cfg, logg, nil)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap store", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logg.Error(context.Background(), "error closing store", err)
		}
	}()

	service, err := a.Scheduler()
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	switch {
	case *job != "":
		err = service.RunJob(ctx, *job)
	case *once:
		err = service.RunOnce(ctx)
	default:
		logg.Info(ctx, "starting cron worker")
		err = service.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
