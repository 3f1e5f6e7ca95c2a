package operations

import (
	"context"
	"fmt"
	"time"

	"github.com/kebairia/redis-backup/internal/backup"
	"github.com/kebairia/redis-backup/internal/config"
	"github.com/kebairia/redis-backup/internal/database"
	"github.com/kebairia/redis-backup/internal/logger"
	"github.com/kebairia/redis-backup/internal/retention"
	"github.com/kebairia/redis-backup/internal/snapshot"
)

// Result describes one backup run, successful or not.
type Result struct {
	Outcome      snapshot.Outcome
	SnapshotPath string
	Backup       backup.File
	Pruned       []backup.File
	Retained     int
	StartedAt    time.Time
	Duration     time.Duration
}

// Backup runs BGSAVE, waits for it, copies and verifies the snapshot and
// prunes old backups. The first failing stage stops the run and leaves the
// filesystem as that stage left it.
func (om *OperationManager) Backup(ctx context.Context) (Result, error) {
	res := Result{StartedAt: om.now()}

	om.log.Info("backup begin",
		"backup_dir", om.cfg.Backup.Directory,
		"backup_file", om.cfg.Backup.Filename,
		"max_backups", om.cfg.Retention.MaxBackups,
		"redis_port", om.cfg.Redis.Port,
		"bgsave_timeout", om.cfg.BgsaveTimeout().String(),
	)

	outcome, err := om.controller.BgsaveAndWait(ctx, om.store, om.cfg.BgsaveTimeout())
	res.Outcome = outcome
	if err != nil {
		return om.finish(res, fmt.Errorf("bgsave: %w", err))
	}
	if outcome != snapshot.OutcomeOK {
		return om.finish(res, fmt.Errorf("bgsave %s: %w", outcome, outcome.Err()))
	}

	path, err := snapshot.ResolvePath(ctx, om.store)
	if err != nil {
		return om.finish(res, fmt.Errorf("resolve rdb path: %w", err))
	}
	res.SnapshotPath = path
	om.log.Info("redis rdb file path", "path", path)

	file, err := om.materializer.Materialize(ctx, path, om.cfg.Backup.Directory, om.cfg.Backup.Filename, om.cfg.Redis.Port)
	if err != nil {
		return om.finish(res, fmt.Errorf("copy rdb: %w", err))
	}
	res.Backup = file

	pruned, err := retention.New(om.catalog, om.log).Enforce(ctx, om.cfg.Retention.MaxBackups)
	res.Pruned = pruned
	if err != nil {
		return om.finish(res, fmt.Errorf("retention: %w", err))
	}

	retained, err := om.catalog.List(ctx)
	if err != nil {
		return om.finish(res, fmt.Errorf("list backups: %w", err))
	}
	res.Retained = len(retained)

	return om.finish(res, nil)
}

func (om *OperationManager) finish(res Result, err error) (Result, error) {
	res.Duration = om.now().Sub(res.StartedAt)
	if err != nil {
		om.log.Error("backup failed", "error", err.Error(), "elapsed", res.Duration.String())
		return res, err
	}
	om.log.Info("backup successful", "path", res.Backup.Path, "pruned", len(res.Pruned), "elapsed", res.Duration.String())
	return res, nil
}

// PerformBackup is the whole run behind the CLI: it takes the run lock,
// connects to Redis, runs the pipeline and records metrics. The lock and the
// connection are released on every path.
func PerformBackup(ctx context.Context, cfg config.Config, log logger.Logger) (Result, error) {
	lock, err := AcquireLock(cfg.Backup.LockFile)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("releasing lock", "path", cfg.Backup.LockFile, "error", err.Error())
		}
	}()

	start := time.Now()
	res, err := runWithStore(ctx, cfg, log)
	if res.StartedAt.IsZero() {
		res.StartedAt = start
		res.Duration = time.Since(start)
	}

	if cfg.Metrics.Textfile != "" {
		m := newRunMetrics(cfg.Redis.Port)
		m.observe(res, err)
		if werr := m.writeTextfile(cfg.Metrics.Textfile); werr != nil {
			log.Warn("writing metrics textfile", "path", cfg.Metrics.Textfile, "error", werr.Error())
		}
	}
	return res, err
}

func runWithStore(ctx context.Context, cfg config.Config, log logger.Logger) (Result, error) {
	store, err := database.OpenRedis(ctx, cfg, log)
	if err != nil {
		return Result{}, err
	}
	defer store.Close()

	return NewOperationManager(cfg, store, log).Backup(ctx)
}
