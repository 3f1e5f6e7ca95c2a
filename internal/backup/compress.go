package backup

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// CompressedExt is appended to the snapshot extension for zstd backups.
const CompressedExt = ".zst"

// copyZstd streams in through a zstd encoder into out.
func copyZstd(out io.Writer, in io.Reader) error {
	writer, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("failed to create Zstandard writer: %w", err)
	}
	if _, err := io.Copy(writer, in); err != nil {
		writer.Close()
		return fmt.Errorf("failed to compress file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to flush Zstandard writer: %w", err)
	}
	return nil
}

// SumZstd hashes the decompressed content of a zstd file, so it can be
// compared against the digest of the uncompressed source.
func (h Hasher) SumZstd(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader, err := zstd.NewReader(f)
	if err != nil {
		return Digest{}, fmt.Errorf("failed to create Zstandard reader: %w", err)
	}
	defer reader.Close()

	d, err := h.SumReader(reader)
	if err != nil {
		return Digest{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return d, nil
}
