package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kebairia/redis-backup/internal/logger"
)

const template = "redis_dump_%Y-%m-%d_%H%M%S"

var fixedNow = time.Date(2024, 3, 1, 4, 5, 6, 0, time.UTC)

func newTestMaterializer(t *testing.T, opts ...MaterializerOption) *Materializer {
	opts = append([]MaterializerOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewMaterializer(logger.New(zaptest.NewLogger(t)), opts...)
}

func TestFormatName(t *testing.T) {
	name, err := FormatName(template, fixedNow, 6379, false)
	require.NoError(t, err)
	assert.Equal(t, "redis_dump_2024-03-01_040506(port_6379).rdb", name)

	name, err = FormatName(template, fixedNow, 6380, true)
	require.NoError(t, err)
	assert.Equal(t, "redis_dump_2024-03-01_040506(port_6380).rdb.zst", name)
}

func TestFormatName_Verbs(t *testing.T) {
	now := time.Date(2024, 3, 1, 4, 5, 6, 123456000, time.UTC)
	tests := []struct {
		name     string
		template string
		want     string
		wantErr  bool
	}{
		{"microseconds", "redis_dump_%Y-%m-%d_%H%M%S_%f", "redis_dump_2024-03-01_040506_123456(port_6379).rdb", false},
		{"unix seconds", "redis_%s", fmt.Sprintf("redis_%d(port_6379).rdb", now.Unix()), false},
		{"literal percent", "redis_100%%", "redis_100%(port_6379).rdb", false},
		{"unknown verb", "redis_%Q", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := FormatName(tt.template, now, 6379, false)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestMaterialize_CopiesAndVerifies(t *testing.T) {
	srcDir := t.TempDir()
	src := writeFile(t, filepath.Join(srcDir, "dump.rdb"), payload(2000))
	mtime := time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, mtime, mtime))

	backupDir := filepath.Join(t.TempDir(), "nested", "backups")

	file, err := newTestMaterializer(t).Materialize(context.Background(), src, backupDir, template, 6379)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(backupDir, "redis_dump_2024-03-01_040506(port_6379).rdb"), file.Path)
	assert.Equal(t, int64(len(payload(2000))), file.Size)
	assert.True(t, file.ModTime.Equal(mtime), "mtime preserved")

	got, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	assert.Equal(t, payload(2000), got)
}

func TestMaterialize_Collision(t *testing.T) {
	src := writeFile(t, filepath.Join(t.TempDir(), "dump.rdb"), []byte("new snapshot"))
	backupDir := t.TempDir()
	existing := writeFile(t,
		filepath.Join(backupDir, "redis_dump_2024-03-01_040506(port_6379).rdb"),
		[]byte("precious older backup"))

	_, err := newTestMaterializer(t).Materialize(context.Background(), src, backupDir, template, 6379)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCollision)

	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, []byte("precious older backup"), got)
}

func TestMaterialize_BackupDirIsAFile(t *testing.T) {
	src := writeFile(t, filepath.Join(t.TempDir(), "dump.rdb"), []byte("x"))
	notDir := writeFile(t, filepath.Join(t.TempDir(), "backups"), []byte("oops"))

	_, err := newTestMaterializer(t).Materialize(context.Background(), src, notDir, template, 6379)
	assert.ErrorIs(t, err, ErrNotADirectory)
}

func TestMaterialize_MissingSource(t *testing.T) {
	backupDir := t.TempDir()

	_, err := newTestMaterializer(t).Materialize(context.Background(),
		filepath.Join(t.TempDir(), "missing.rdb"), backupDir, template, 6379)
	require.Error(t, err)

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial file left behind")
}

func TestMaterialize_Compressed(t *testing.T) {
	src := writeFile(t, filepath.Join(t.TempDir(), "dump.rdb"), payload(5000))
	backupDir := t.TempDir()

	file, err := newTestMaterializer(t, WithCompression(true)).
		Materialize(context.Background(), src, backupDir, template, 6379)
	require.NoError(t, err)

	assert.Equal(t, "redis_dump_2024-03-01_040506(port_6379).rdb.zst", file.Name())
	assert.Less(t, file.Size, int64(len(payload(5000))))

	want, err := NewHasher().Sum(src)
	require.NoError(t, err)
	got, err := NewHasher().SumZstd(file.Path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVerify_IntegrityMismatchKeepsCopy(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "dump.rdb"), []byte("original"))
	dst := writeFile(t, filepath.Join(dir, "copy.rdb"), []byte("corrupt!"))

	ok, err := newTestMaterializer(t).verify(src, dst)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.FileExists(t, dst)
}

func TestMaterialize_IntegrityFailureKeepsCopy(t *testing.T) {
	src := writeFile(t, filepath.Join(t.TempDir(), "dump.rdb"), payload(300))
	backupDir := t.TempDir()

	var checked []string
	mismatch := func(src, dst string) (bool, error) {
		checked = append(checked, src, dst)
		return false, nil
	}

	_, err := newTestMaterializer(t, WithVerifier(mismatch)).
		Materialize(context.Background(), src, backupDir, template, 6379)
	require.ErrorIs(t, err, ErrIntegrity)

	dst := filepath.Join(backupDir, "redis_dump_2024-03-01_040506(port_6379).rdb")
	assert.Equal(t, []string{src, dst}, checked)
	got, err := os.ReadFile(dst)
	require.NoError(t, err, "copy kept for inspection")
	assert.Equal(t, payload(300), got)
}

func TestMaterialize_VerifyError(t *testing.T) {
	src := writeFile(t, filepath.Join(t.TempDir(), "dump.rdb"), payload(10))
	boom := errors.New("disk gone")

	_, err := newTestMaterializer(t, WithVerifier(func(string, string) (bool, error) { return false, boom })).
		Materialize(context.Background(), src, t.TempDir(), template, 6379)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrIntegrity)
}

func TestMaterialize_CancelledContext(t *testing.T) {
	src := writeFile(t, filepath.Join(t.TempDir(), "dump.rdb"), payload(10))
	backupDir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestMaterializer(t).Materialize(ctx, src, backupDir, template, 6379)
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIsBackupName(t *testing.T) {
	assert.True(t, IsBackupName("a(port_1).rdb"))
	assert.True(t, IsBackupName("a(port_1).rdb.zst"))
	assert.False(t, IsBackupName("a.rdb.tmp"))
	assert.False(t, IsBackupName(".lock"))
}
