// Package fingerprint computes the (size, content hash) identity used for
// duplicate and rename detection across the sync engine.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrHashUnavailable indicates a file could not be read for hashing. Callers
// are expected to fail open: a file without a fingerprint is still included
// in sync planning, because a harmless duplicate transfer beats a silently
// dropped file.
var ErrHashUnavailable = errors.New("content hash unavailable")

// Fingerprint identifies file content independent of its name or path.
type Fingerprint struct {
	Size int64
	Hash string
}

// Compute streams the file through SHA-256. Memory use is constant
// regardless of file size.
func Compute(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: stat %s: %v", ErrHashUnavailable, path, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: open %s: %v", ErrHashUnavailable, path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return Fingerprint{}, fmt.Errorf("%w: read %s: %v", ErrHashUnavailable, path, err)
	}

	return Fingerprint{
		Size: info.Size(),
		Hash: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}
