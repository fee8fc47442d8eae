// Package fileid derives deterministic item IDs for rows of intake files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
)

const prefix = "intake-"

// RowItemID returns a stable item ID for row (1-based) of the intake file at path.
// Same path and row always yield the same ID, so re-importing a file is idempotent.
func RowItemID(path string, row int) string {
	normalized := filepath.Clean(path)
	hash := sha256.Sum256([]byte(normalized + "#" + strconv.Itoa(row)))
	return prefix + hex.EncodeToString(hash[:12])
}
