// Package contenthash produces the content fingerprints shared by read
// snapshots and trace records.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

// Prefix is prepended to every hex digest.
const Prefix = "sha256:"

// Normalize converts CRLF line endings to LF. Nothing else is rewritten.
func Normalize(content string) string {
	return strings.ReplaceAll(content, "\r\n", "\n")
}

// Sum returns "sha256:<hex>" of the normalized content.
func Sum(content string) string {
	sum := sha256.Sum256([]byte(Normalize(content)))
	return Prefix + hex.EncodeToString(sum[:])
}

// File reads path and returns its content hash.
func File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Sum(string(data)), nil
}
