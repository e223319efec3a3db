package images

import (
	"crypto/md5"
	"encoding/hex"
)

// ComputeChecksum generates a deterministic checksum for encoded image bytes.
//
// Arguments:
// - data: The bytes to compute the checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string.
//
// Example:
//
// ```go
//
//	checksum := ComputeChecksum(file.Data)
//	fmt.Printf("Image checksum: %s\n", checksum)
//
// ```
func ComputeChecksum(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
