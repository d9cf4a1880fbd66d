package data

import (
	"crypto/md5"
	"encoding/binary"
)

const HashSizeBytes = 16

// Hash is a 128-bit MD5 digest used to derive partition token placement.
// It stores the raw digest bytes directly rather than a pre-split pair of
// uint64s, so Bytes simply returns a copy of the digest array and Low/High
// pay for a BigEndian decode only when actually called.
type Hash struct {
	digest [HashSizeBytes]byte
}

func NewHash(input []byte) Hash {
	return Hash{digest: md5.Sum(input)}
}

// Xor folds two digests together byte by byte, producing an
// order-independent summary of whatever the two inputs represented.
func (h Hash) Xor(other Hash) Hash {
	var result Hash

	for i := range h.digest {
		result.digest[i] = h.digest[i] ^ other.digest[i]
	}

	return result
}

func (h Hash) Bytes() [HashSizeBytes]byte {
	return h.digest
}

func (h Hash) Low() uint64 {
	return binary.BigEndian.Uint64(h.digest[:8])
}

func (h Hash) High() uint64 {
	return binary.BigEndian.Uint64(h.digest[8:])
}
