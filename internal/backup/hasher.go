package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrPrecondition is returned by Compare when an operand is not a regular file.
var ErrPrecondition = errors.New("precondition failed")

// DefaultBlockSize is the read size used when hashing files.
const DefaultBlockSize = 1 << 20

// Digest is a SHA-256 content fingerprint.
type Digest [sha256.Size]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Hasher computes content digests of files.
type Hasher struct {
	BlockSize int
}

// NewHasher returns a Hasher reading 1 MiB blocks.
func NewHasher() Hasher {
	return Hasher{BlockSize: DefaultBlockSize}
}

// Sum hashes the file at path.
func (h Hasher) Sum(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d, err := h.SumReader(f)
	if err != nil {
		return Digest{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return d, nil
}

// SumReader hashes everything r yields until EOF.
func (h Hasher) SumReader(r io.Reader) (Digest, error) {
	size := h.BlockSize
	if size <= 0 {
		size = DefaultBlockSize
	}

	hash := sha256.New()
	buf := make([]byte, size)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			hash.Write(buf[:n])
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return Digest{}, err
		}
	}

	var d Digest
	copy(d[:], hash.Sum(nil))
	return d, nil
}

// Compare reports whether two regular files have identical content.
func (h Hasher) Compare(pathA, pathB string) (bool, error) {
	if err := requireRegular(pathA); err != nil {
		return false, err
	}
	if err := requireRegular(pathB); err != nil {
		return false, err
	}

	a, err := h.Sum(pathA)
	if err != nil {
		return false, err
	}
	b, err := h.Sum(pathB)
	if err != nil {
		return false, err
	}
	return a == b, nil
}

func requireRegular(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPrecondition, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrPrecondition, path)
	}
	return nil
}
