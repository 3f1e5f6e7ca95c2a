package retention

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/kebairia/redis-backup/internal/backup"
)

// Catalog is the source of truth for the retained backup set.
type Catalog interface {
	List(ctx context.Context) ([]backup.File, error)
	Remove(ctx context.Context, f backup.File) error
}

// DirCatalog derives the retained set by scanning a directory for backup files.
// Nothing is persisted besides the files themselves.
type DirCatalog struct {
	Dir string
}

var _ Catalog = DirCatalog{}

// List returns every regular backup file in the directory, oldest first.
// A missing directory is an empty set.
func (c DirCatalog) List(ctx context.Context) ([]backup.File, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading folder: %w", err)
	}

	var files []backup.File
	for _, ent := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := ent.Name()
		if ent.IsDir() || !backup.IsBackupName(name) {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, backup.FromFileInfo(filepath.Join(c.Dir, name), info))
	}

	SortOldestFirst(files)
	return files, nil
}

// Remove deletes one backup file.
func (c DirCatalog) Remove(_ context.Context, f backup.File) error {
	if err := os.Remove(f.Path); err != nil {
		return fmt.Errorf("delete %s: %w", f.Path, err)
	}
	return nil
}

// SortOldestFirst orders files by modification time, then by name.
func SortOldestFirst(files []backup.File) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.Before(files[j].ModTime)
		}
		return files[i].Name() < files[j].Name()
	})
}
