package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shelfpos/internal/backup"
	"github.com/angelmondragon/shelfpos/internal/orders"
	"github.com/angelmondragon/shelfpos/pkg/logger"
)

const (
	AutoBackupJobName     = "auto-backup"
	OrderRetentionJobName = "order-retention"
)

type autoExporter interface {
	AutoExportData(ctx context.Context, shell backup.Shell) (string, error)
}

type AutoBackupJobParams struct {
	Logger   *logger.Logger
	Pipeline autoExporter
	Shell    backup.Shell
	// MaxAge is how old the newest backup may get. Zero disables the job.
	MaxAge time.Duration
	Now    func() time.Time
}

type autoBackupJob struct {
	logg     *logger.Logger
	pipeline autoExporter
	shell    backup.Shell
	maxAge   time.Duration
	now      func() time.Time
}

// NewAutoBackupJob builds the job that writes a backup when the newest one
// in the shell is older than MaxAge, or when there is none.
func NewAutoBackupJob(params AutoBackupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Pipeline == nil {
		return nil, fmt.Errorf("backup pipeline required")
	}
	if params.Shell == nil {
		return nil, fmt.Errorf("backup shell required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &autoBackupJob{
		logg:     params.Logger,
		pipeline: params.Pipeline,
		shell:    params.Shell,
		maxAge:   params.MaxAge,
		now:      now,
	}, nil
}

func (j *autoBackupJob) Name() string { return AutoBackupJobName }

func (j *autoBackupJob) Run(ctx context.Context) error {
	if j.maxAge <= 0 {
		return nil
	}
	files, err := j.shell.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	if len(files) > 0 {
		age := j.now().Sub(files[0].ModifiedAt)
		if age < j.maxAge {
			j.logg.Info(j.logg.WithField(ctx, "newest_backup", files[0].Name), "backup is fresh")
			return nil
		}
	}
	path, err := j.pipeline.AutoExportData(ctx, j.shell)
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithField(ctx, "path", path), "automatic backup written")
	return nil
}

type oldOrderPurger interface {
	DeleteOldOrders(ctx context.Context) (orders.PurgeResult, error)
}

type orderRetentionJob struct {
	logg   *logger.Logger
	orders oldOrderPurger
}

// NewOrderRetentionJob builds the job that purges orders past the
// retention window.
func NewOrderRetentionJob(logg *logger.Logger, purger oldOrderPurger) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if purger == nil {
		return nil, fmt.Errorf("order service required")
	}
	return &orderRetentionJob{logg: logg, orders: purger}, nil
}

func (j *orderRetentionJob) Name() string { return OrderRetentionJobName }

func (j *orderRetentionJob) Run(ctx context.Context) error {
	res, err := j.orders.DeleteOldOrders(ctx)
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithField(ctx, "purged", res.Count), "old orders purged")
	return nil
}
