// Package retention keeps the backup set under a maximum count.
package retention

import (
	"context"
	"errors"
	"fmt"

	"github.com/kebairia/redis-backup/internal/backup"
	"github.com/kebairia/redis-backup/internal/logger"
)

// ErrInvariantViolation means the retained set did not end at the expected
// size after pruning.
var ErrInvariantViolation = errors.New("retention invariant violated")

type Engine struct {
	catalog Catalog
	log     logger.Logger
}

func New(catalog Catalog, log logger.Logger) *Engine {
	return &Engine{catalog: catalog, log: log}
}

// Enforce deletes the oldest backups until at most maxBackups remain and
// returns the deleted files. After pruning, the retained count must equal
// maxBackups exactly.
func (e *Engine) Enforce(ctx context.Context, maxBackups int) ([]backup.File, error) {
	if maxBackups < 1 {
		return nil, fmt.Errorf("max backups must be at least 1, got %d", maxBackups)
	}

	files, err := e.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	n := len(files)
	if n <= maxBackups {
		e.log.Debug("nothing to prune", "backups", n, "limit", maxBackups)
		return nil, nil
	}

	e.log.Info("number of backups exceeds limit, deleting old backups", "backups", n, "limit", maxBackups)

	// Catalog implementations may list in any order.
	SortOldestFirst(files)
	toDelete := files[:n-maxBackups]

	var (
		removed []backup.File
		errs    []error
	)
	for _, f := range toDelete {
		if err := e.catalog.Remove(ctx, f); err != nil {
			e.log.Error("delete failed", "path", f.Path, "error", err.Error())
			errs = append(errs, err)
			continue
		}
		e.log.Info("deleted", "path", f.Path, "modified", f.ModTime)
		removed = append(removed, f)
	}
	if len(errs) > 0 {
		return removed, errors.Join(errs...)
	}

	after, err := e.catalog.List(ctx)
	if err != nil {
		return removed, err
	}
	if len(after) != maxBackups {
		return removed, fmt.Errorf("%w: %d backups retained, expected %d", ErrInvariantViolation, len(after), maxBackups)
	}
	return removed, nil
}
