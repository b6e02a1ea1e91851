package operation

import (
	"encoding/hex"
	"hash"
	"io"

	"github.com/zeebo/blake3"
)

// NewHasher returns the content hasher used for every hash in the metadata.
func NewHasher() hash.Hash {
	return blake3.New()
}

// HexSum renders the current digest of h.
func HexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// HashReader consumes r and returns its hex digest and length.
func HashReader(r io.Reader) (string, uint64, error) {
	h := NewHasher()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return HexSum(h), uint64(n), nil
}

// countingWriter counts bytes passing through.
type countingWriter struct{ n uint64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += uint64(len(p))
	return len(p), nil
}
