package operations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kebairia/redis-backup/internal/backup"
	"github.com/kebairia/redis-backup/internal/config"
	"github.com/kebairia/redis-backup/internal/database/databasetest"
	"github.com/kebairia/redis-backup/internal/logger"
	"github.com/kebairia/redis-backup/internal/snapshot"
)

var epoch = time.Date(2024, 6, 1, 2, 3, 4, 0, time.UTC)

type fixture struct {
	cfg       config.Config
	store     *databasetest.Store
	clock     *databasetest.Clock
	backupDir string
	rdbPath   string
}

// newFixture returns a store whose BGSAVE rewrites dump.rdb when it completes.
func newFixture(t *testing.T, completeAfter, timeoutSeconds int) *fixture {
	t.Helper()
	rdbDir := t.TempDir()
	f := &fixture{
		store:     databasetest.New(rdbDir, "dump.rdb", completeAfter),
		clock:     databasetest.NewClock(epoch),
		backupDir: filepath.Join(t.TempDir(), "backups"),
		rdbPath:   filepath.Join(rdbDir, "dump.rdb"),
	}
	f.store.OnComplete = func() {
		require.NoError(t, os.WriteFile(f.rdbPath, []byte("REDIS0011 fresh snapshot"), 0o644))
	}

	f.cfg = config.Defaults()
	f.cfg.Backup.Directory = f.backupDir
	f.cfg.Snapshot.BgsaveTimeout = timeoutSeconds
	return f
}

func (f *fixture) run(t *testing.T, opts ...Option) (Result, error) {
	opts = append([]Option{WithClock(f.clock)}, opts...)
	om := NewOperationManager(f.cfg, f.store, logger.New(zaptest.NewLogger(t)), opts...)
	return om.Backup(context.Background())
}

func listBackups(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		if backup.IsBackupName(e.Name()) {
			out = append(out, e.Name())
		}
	}
	return out
}

func seedBackups(t *testing.T, dir string, n int) []string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	var paths []string
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, fmt.Sprintf("redis_dump_2023-01-%02d_000000(port_6379).rdb", i+1))
		require.NoError(t, os.WriteFile(p, []byte("old"), 0o644))
		mt := time.Date(2023, 1, i+1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, os.Chtimes(p, mt, mt))
		paths = append(paths, p)
	}
	return paths
}

func TestBackup_ScenarioA_Success(t *testing.T) {
	f := newFixture(t, 2, 60)

	res, err := f.run(t)
	require.NoError(t, err)

	assert.Equal(t, snapshot.OutcomeOK, res.Outcome)
	assert.Equal(t, f.rdbPath, res.SnapshotPath)
	assert.Equal(t, "redis_dump_2024-06-01_020306(port_6379).rdb", res.Backup.Name())
	assert.Equal(t, []string{res.Backup.Name()}, listBackups(t, f.backupDir))
	assert.Equal(t, 1, res.Retained)
	assert.Empty(t, res.Pruned)
	assert.Equal(t, 2*time.Second, res.Duration)
}

func TestBackup_ScenarioB_Timeout(t *testing.T) {
	f := newFixture(t, databasetest.Never, 3)

	res, err := f.run(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, snapshot.ErrTimeout)
	assert.Equal(t, snapshot.OutcomeTimeout, res.Outcome)
	assert.Equal(t, 3*time.Second, res.Duration)
	assert.NoDirExists(t, f.backupDir, "no backup created")
}

func TestBackup_ScenarioC_RotatesOldest(t *testing.T) {
	f := newFixture(t, 1, 60)
	seeded := seedBackups(t, f.backupDir, 10)

	res, err := f.run(t)
	require.NoError(t, err)

	require.Len(t, res.Pruned, 1)
	assert.Equal(t, seeded[0], res.Pruned[0].Path)
	assert.NoFileExists(t, seeded[0])
	assert.FileExists(t, res.Backup.Path, "the new backup is never pruned")
	assert.Len(t, listBackups(t, f.backupDir), 10)
	assert.Equal(t, 10, res.Retained)
}

func TestBackup_FailedToStart(t *testing.T) {
	f := newFixture(t, 1, 60)
	f.store.Reject = true

	res, err := f.run(t)
	assert.ErrorIs(t, err, snapshot.ErrFailedToStart)
	assert.Equal(t, snapshot.OutcomeFailedToStart, res.Outcome)
	assert.Zero(t, f.store.Polls())
	assert.NoDirExists(t, f.backupDir)
}

func TestBackup_CancelledWhileWaiting(t *testing.T) {
	f := newFixture(t, databasetest.Never, 60)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	om := NewOperationManager(f.cfg, f.store, logger.New(zaptest.NewLogger(t)), WithClock(f.clock))
	res, err := om.Backup(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, snapshot.OutcomeInterrupted, res.Outcome)
	assert.NoDirExists(t, f.backupDir)
}

func TestBackup_MissingStoreConfig(t *testing.T) {
	f := newFixture(t, 1, 60)
	delete(f.store.Config, "dbfilename")

	_, err := f.run(t)
	assert.ErrorIs(t, err, snapshot.ErrConfig)
	assert.NoDirExists(t, f.backupDir)
}

func TestBackup_CollisionStopsBeforeRetention(t *testing.T) {
	f := newFixture(t, 1, 60)
	f.cfg.Retention.MaxBackups = 1
	seedBackups(t, f.backupDir, 1)
	// the fake clock reads epoch+1s when the name is rendered
	clash := filepath.Join(f.backupDir, "redis_dump_2024-06-01_020305(port_6379).rdb")
	require.NoError(t, os.WriteFile(clash, []byte("keep me"), 0o644))

	_, err := f.run(t)
	assert.ErrorIs(t, err, backup.ErrCollision)

	got, rerr := os.ReadFile(clash)
	require.NoError(t, rerr)
	assert.Equal(t, "keep me", string(got))
	assert.Len(t, listBackups(t, f.backupDir), 2, "retention must not run after a failed copy")
}

func TestBackup_IntegrityFailureSkipsRetention(t *testing.T) {
	f := newFixture(t, 1, 60)
	f.cfg.Retention.MaxBackups = 1
	seeded := seedBackups(t, f.backupDir, 2)
	mismatch := backup.WithVerifier(func(string, string) (bool, error) { return false, nil })

	res, err := f.run(t, WithMaterializerOptions(mismatch))
	require.ErrorIs(t, err, backup.ErrIntegrity)

	for _, p := range seeded {
		assert.FileExists(t, p)
	}
	assert.FileExists(t, filepath.Join(f.backupDir, "redis_dump_2024-06-01_020305(port_6379).rdb"), "copy kept for inspection")
	assert.Len(t, listBackups(t, f.backupDir), 3)
	assert.Empty(t, res.Pruned)
	assert.Zero(t, res.Retained)
}

func TestBackup_Compressed(t *testing.T) {
	f := newFixture(t, 1, 60)
	f.cfg.Backup.Compress = true

	res, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, "redis_dump_2024-06-01_020305(port_6379).rdb.zst", res.Backup.Name())
}
