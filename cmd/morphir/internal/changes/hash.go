package changes

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// Hash is the hex-encoded xxHash64 digest of a file's bytes.
type Hash string

// HashBytes computes the content hash of data.
func HashBytes(data []byte) Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64(data))
	return Hash(hex.EncodeToString(buf[:]))
}
