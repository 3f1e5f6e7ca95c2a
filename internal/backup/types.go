package backup

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SnapshotExt is the extension of every backup file.
const SnapshotExt = ".rdb"

// File is one retained backup artifact.
type File struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Name returns the base name of the file.
func (f File) Name() string {
	return filepath.Base(f.Path)
}

// FromFileInfo builds a File from a path and its stat result.
func FromFileInfo(path string, info os.FileInfo) File {
	return File{
		Path:    path,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}
}

// IsBackupName reports whether name carries a backup extension
// (.rdb, or .rdb.zst for compressed backups).
func IsBackupName(name string) bool {
	return strings.HasSuffix(name, SnapshotExt) ||
		strings.HasSuffix(name, SnapshotExt+CompressedExt)
}
