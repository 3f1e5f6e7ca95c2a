//go:build !unix

package operations

import "os"

// No advisory locking outside unix; runs are not excluded.
// TODO: use LockFileEx via golang.org/x/sys/windows.

func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
