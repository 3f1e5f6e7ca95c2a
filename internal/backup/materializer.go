package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lestrrat-go/strftime"

	"github.com/kebairia/redis-backup/internal/logger"
)

var (
	ErrNotADirectory = errors.New("not a directory")
	ErrCollision     = errors.New("backup file already exists")
	ErrIntegrity     = errors.New("checksum mismatch")
)

// MaterializerOption lets you override default settings on a Materializer.
type MaterializerOption func(*Materializer)

// Materializer copies a snapshot into the backup directory and verifies it.
type Materializer struct {
	Hasher   Hasher
	Compress bool
	Now      func() time.Time
	Logger   logger.Logger

	// Verify reports whether dst holds the same content as src. Nil means
	// digest comparison with Hasher.
	Verify func(src, dst string) (bool, error)
}

// NewMaterializer returns a Materializer with a 1 MiB block hasher and the
// wall clock.
func NewMaterializer(log logger.Logger, opts ...MaterializerOption) *Materializer {
	m := &Materializer{
		Hasher: NewHasher(),
		Now:    time.Now,
		Logger: log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithCompression stores backups zstd-compressed.
func WithCompression(compress bool) MaterializerOption {
	return func(m *Materializer) {
		m.Compress = compress
	}
}

// WithClock overrides the time source used for file names.
func WithClock(now func() time.Time) MaterializerOption {
	return func(m *Materializer) {
		if now != nil {
			m.Now = now
		}
	}
}

// ParseNameTemplate compiles a strftime file name template. Besides the
// POSIX verbs it accepts %f (microseconds) and %s (unix seconds).
func ParseNameTemplate(template string) (*strftime.Strftime, error) {
	f, err := strftime.New(template,
		strftime.WithMicroseconds('f'),
		strftime.WithUnixSeconds('s'),
	)
	if err != nil {
		return nil, fmt.Errorf("parse backup filename %q: %w", template, err)
	}
	return f, nil
}

// WithVerifier replaces the digest comparison run after each copy.
func WithVerifier(verify func(src, dst string) (bool, error)) MaterializerOption {
	return func(m *Materializer) {
		m.Verify = verify
	}
}

// FormatName renders the backup file name:
// strftime(template, now) + "(port_<port>).rdb" (+ ".zst" when compressed).
func FormatName(template string, now time.Time, port int, compress bool) (string, error) {
	f, err := ParseNameTemplate(template)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s(port_%d)%s", f.FormatString(now), port, SnapshotExt)
	if compress {
		name += CompressedExt
	}
	return name, nil
}

// Materialize copies src into backupDir under a timestamped name, then checks
// the copy's digest against the source.
//
// An existing destination is never overwritten. On ErrIntegrity the copy is
// left in place for inspection.
func (m *Materializer) Materialize(ctx context.Context, src, backupDir, nameTemplate string, port int) (File, error) {
	name, err := FormatName(nameTemplate, m.Now(), port, m.Compress)
	if err != nil {
		return File{}, err
	}
	dst := filepath.Join(backupDir, name)

	if err := EnsureDirectoryExist(backupDir); err != nil {
		return File{}, err
	}
	if _, err := os.Lstat(dst); err == nil {
		return File{}, fmt.Errorf("%w: %s", ErrCollision, dst)
	}

	m.Logger.Debug("copying snapshot", "src", src, "dst", dst, "compress", m.Compress)
	if err := m.copyFile(ctx, src, dst); err != nil {
		return File{}, err
	}

	verify := m.Verify
	if verify == nil {
		verify = m.verify
	}
	ok, err := verify(src, dst)
	if err != nil {
		return File{}, fmt.Errorf("verify %s: %w", dst, err)
	}
	if !ok {
		m.Logger.Error("checksum compare failed, copy kept for inspection", "src", src, "dst", dst)
		return File{}, fmt.Errorf("%w: failed to copy dbfile %s to %s", ErrIntegrity, src, dst)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", dst, err)
	}
	file := FromFileInfo(dst, info)

	m.Logger.Info("backup created, checksum ok",
		"path", file.Path,
		"size", humanize.IBytes(uint64(file.Size)),
		"bytes", file.Size,
	)
	return file, nil
}

// copyFile writes src to a new file at dst, keeping src's mode and mtime.
// A partially written dst is removed.
func (m *Materializer) copyFile(ctx context.Context, src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer in.Close()

	srcInfo, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, srcInfo.Mode().Perm())
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrCollision, dst)
		}
		return fmt.Errorf("create backup file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close backup file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	r := &ctxReader{ctx: ctx, r: in}
	if m.Compress {
		err = copyZstd(out, r)
	} else {
		_, err = io.Copy(out, r)
	}
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("sync backup file: %w", err)
	}

	mtime := srcInfo.ModTime()
	if err := os.Chtimes(dst, mtime, mtime); err != nil {
		m.Logger.Warn("could not preserve modification time", "path", dst, "error", err.Error())
	}
	return nil
}

func (m *Materializer) verify(src, dst string) (bool, error) {
	if !m.Compress {
		return m.Hasher.Compare(src, dst)
	}
	if err := requireRegular(src); err != nil {
		return false, err
	}
	if err := requireRegular(dst); err != nil {
		return false, err
	}
	want, err := m.Hasher.Sum(src)
	if err != nil {
		return false, err
	}
	got, err := m.Hasher.SumZstd(dst)
	if err != nil {
		// An undecodable archive is a failed copy, not an I/O problem.
		m.Logger.Warn("compressed backup unreadable", "path", dst, "error", err.Error())
		return false, nil
	}
	return want == got, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
