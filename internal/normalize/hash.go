package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ShortLen is how many hex digits of a fingerprint appear in version labels.
const ShortLen = 12

// FileHash returns the hex SHA-256 of the file at path.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for hash: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// BytesHash fingerprints rules files, migrations and in-memory catalogs.
// Parts are NUL-separated so ("ab","c") and ("a","bc") differ.
func BytesHash(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Short truncates a fingerprint to ShortLen digits.
func Short(sum string) string {
	if len(sum) > ShortLen {
		return sum[:ShortLen]
	}
	return sum
}
