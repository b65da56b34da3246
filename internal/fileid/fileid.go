// Package fileid derives stable keys for watched input files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"time"
)

const prefix = "file:"

// SourceKey returns a key for one version of the file at absolutePath.
// The same path, size and modification time always yield the same key, so a run recorded
// under it marks that version as already clustered.
func SourceKey(absolutePath string, size int64, modTime time.Time) string {
	h := sha256.New()
	h.Write([]byte(filepath.Clean(absolutePath)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(modTime.UnixNano(), 10)))
	return prefix + hex.EncodeToString(h.Sum(nil))
}
