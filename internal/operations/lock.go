package operations

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLocked means another run holds the lock on the backup directory.
var ErrLocked = errors.New("another backup is in progress")

// RunLock is an exclusive advisory lock held for the duration of a run.
type RunLock struct {
	path string
	file *os.File
}

// AcquireLock opens (creating if needed) the lock file at path and takes an
// exclusive, non-blocking lock on it.
func AcquireLock(path string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	// Informational only; the kernel lock is what excludes other runs.
	if err := f.Truncate(0); err == nil {
		hostname, _ := os.Hostname()
		fmt.Fprintf(f, "pid=%d\nhost=%s\ntime=%s\n", os.Getpid(), hostname, time.Now().Format(time.RFC3339))
	}

	return &RunLock{path: path, file: f}, nil
}

// Release drops the lock. The file itself is left in place.
func (l *RunLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := errors.Join(unlockFile(l.file), l.file.Close())
	l.file = nil
	return err
}
