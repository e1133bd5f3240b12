package images

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
)

// Checksum generates a deterministic checksum for a PixelBuffer, used to verify
// that repeated enhancement runs are byte-identical.
//
// Arguments:
// - buf: The buffer to compute the checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum over the dimensions and samples, or "empty".
//
// Example:
//
// ```go
//
//	checksum := Checksum(out)
//	fmt.Printf("Output checksum: %s\n", checksum)
//
// ```
func Checksum(buf *PixelBuffer) string {
	if buf == nil || len(buf.pix) == 0 {
		return "empty"
	}

	var dims [8]byte
	binary.LittleEndian.PutUint32(dims[0:4], uint32(buf.width))
	binary.LittleEndian.PutUint32(dims[4:8], uint32(buf.height))

	hash := md5.New()
	hash.Write(dims[:])
	hash.Write(buf.pix)
	return fmt.Sprintf("%x", hash.Sum(nil))
}
