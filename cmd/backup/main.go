package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/shelfpos/internal/app"
	"github.com/angelmondragon/shelfpos/pkg/config"
	"github.com/angelmondragon/shelfpos/pkg/logger"
)

const usage = `usage: backup <command> [flags]

commands:
  export [-out file]   write a backup to the backup directory, or to -out
  import [-file path]  restore from a backup file, newest backup by default
  list                 list backup files, newest first
  delete -path path    delete a backup file`

func main() {
	logg := logger.New(logger.Options{ServiceName: "backup"})
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = app.NewLogger(cfg.App, "backup")
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"command": os.Args[1],
	})

	a, err := app.New(ctx, cfg, logg, nil)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap store", err)
		os.Exit(1)
	}

	out, err := run(ctx, a, os.Args[1], os.Args[2:])
	if closeErr := a.Close(); closeErr != nil {
		logg.Error(ctx, "error closing store", closeErr)
	}
	if err != nil {
		logg.Error(ctx, "backup command failed", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func run(ctx context.Context, a *app.App, command string, args []string) (any, error) {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	switch command {
	case "export":
		outFile := fs.String("out", "", "write the snapshot to this file instead of the backup directory")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if *outFile == "" {
			path, err := a.Backup.ExportData(ctx, a.Shell)
			return map[string]string{"path": path}, err
		}
		f, err := os.Create(*outFile)
		if err != nil {
			return nil, err
		}
		if err := a.Backup.ExportTo(ctx, f); err != nil {
			_ = f.Close()
			return nil, err
		}
		return map[string]string{"path": *outFile}, f.Close()

	case "import":
		file := fs.String("file", "", "backup file to restore; defaults to the newest backup")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if *file == "" {
			return a.Backup.ImportData(ctx, a.Shell)
		}
		f, err := os.Open(*file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return a.Backup.ImportFrom(ctx, f)

	case "list":
		return a.Shell.ListFiles(ctx)

	case "delete":
		path := fs.String("path", "", "backup file to delete")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if *path == "" {
			return nil, fmt.Errorf("missing -path")
		}
		replacement, err := a.Backup.DeleteBackup(ctx, a.Shell, *path)
		return map[string]string{"deleted": *path, "autoBackup": replacement}, err

	default:
		return nil, fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}
