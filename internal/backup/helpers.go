package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// EnsureDirectoryExist creates dirPath (with parents) when missing and fails
// with ErrNotADirectory when something other than a directory sits there.
func EnsureDirectoryExist(dirPath string) error {
	info, err := os.Stat(dirPath)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("%w: backup dir %s", ErrNotADirectory, dirPath)
		}
		return nil
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return fmt.Errorf("failed to create backup directory %q: %w", dirPath, err)
		}
		return nil
	default:
		return fmt.Errorf("stat backup directory %q: %w", dirPath, err)
	}
}
