// Package fileid derives stable record IDs for ingested structure files and
// content hashes for uploads.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "file:"

// RecordID returns a stable record ID for the given absolute path.
// Same path always yields the same ID, so re-ingesting a file replaces its
// previous analysis.
func RecordID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	return prefix + digest([]byte(normalized))
}

// IsFileRecord reports whether id was produced by RecordID.
func IsFileRecord(id string) bool {
	return len(id) > len(prefix) && id[:len(prefix)] == prefix
}

// ContentHash returns the hex SHA-256 of data.
func ContentHash(data []byte) string {
	return digest(data)
}

func digest(b []byte) string {
	hash := sha256.Sum256(b)
	return hex.EncodeToString(hash[:])
}
