package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kebairia/redis-backup/internal/database"
)

// ErrConfig means the store did not report a configuration key we need.
var ErrConfig = errors.New("store configuration missing")

const (
	configDir        = "dir"
	configDBFilename = "dbfilename"
)

// ResolvePath returns the on-disk location of the store's snapshot file,
// built from its "dir" and "dbfilename" settings.
func ResolvePath(ctx context.Context, store database.Store) (string, error) {
	dir, err := configValue(ctx, store, configDir)
	if err != nil {
		return "", err
	}
	name, err := configValue(ctx, store, configDBFilename)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func configValue(ctx context.Context, store database.Store, key string) (string, error) {
	value, ok, err := store.GetConfig(ctx, key)
	if err != nil {
		if errors.Is(err, database.ErrConnection) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", ErrConfig, key, err)
	}
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s not reported by %s", ErrConfig, key, store.GetName())
	}
	return value, nil
}
