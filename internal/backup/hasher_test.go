package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func payload(n int) []byte {
	return bytes.Repeat([]byte("REDIS0011-snapshot-"), n)
}

func TestCompare_Reflexive(t *testing.T) {
	f := writeFile(t, filepath.Join(t.TempDir(), "a.rdb"), payload(1000))

	ok, err := NewHasher().Compare(f, f)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompare_ByteCopy(t *testing.T) {
	dir := t.TempDir()
	data := payload(100_000) // spans several 1 MiB blocks
	a := writeFile(t, filepath.Join(dir, "a.rdb"), data)
	b := writeFile(t, filepath.Join(dir, "b.rdb"), append([]byte(nil), data...))

	ok, err := NewHasher().Compare(a, b)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompare_OneByteAltered(t *testing.T) {
	dir := t.TempDir()
	data := payload(100_000)
	altered := append([]byte(nil), data...)
	altered[len(altered)/2] ^= 0xFF

	a := writeFile(t, filepath.Join(dir, "a.rdb"), data)
	b := writeFile(t, filepath.Join(dir, "b.rdb"), altered)

	ok, err := NewHasher().Compare(a, b)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompare_Preconditions(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, filepath.Join(dir, "a.rdb"), []byte("x"))

	_, err := NewHasher().Compare(f, filepath.Join(dir, "missing.rdb"))
	assert.ErrorIs(t, err, ErrPrecondition)

	_, err = NewHasher().Compare(dir, f)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestSum_MissingFile(t *testing.T) {
	_, err := NewHasher().Sum(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSum_BlockSizeDoesNotChangeDigest(t *testing.T) {
	f := writeFile(t, filepath.Join(t.TempDir(), "a.rdb"), payload(5000))

	small, err := Hasher{BlockSize: 7}.Sum(f)
	require.NoError(t, err)
	large, err := NewHasher().Sum(f)
	require.NoError(t, err)

	assert.Equal(t, large, small)
	assert.Len(t, large.String(), 64)
}
