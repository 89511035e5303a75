// Package checksum computes xxhash digests for ingested content.
package checksum

import (
	"encoding/hex"
	"hash"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Bytes returns the hex-encoded xxhash digest of data.
func Bytes(data []byte) string {
	digest := xxhash.New()
	digest.Write(data)
	return hex.EncodeToString(digest.Sum(nil))
}

// Reader wraps r so that every byte read through it is hashed.
// Sum returns the digest of the bytes consumed so far.
type Reader struct {
	r      io.Reader
	digest hash.Hash64
}

// NewReader creates a hashing reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, digest: xxhash.New()}
}

func (h *Reader) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	if n > 0 {
		h.digest.Write(p[:n])
	}
	return n, err
}

// Sum returns the hex-encoded digest of the bytes read.
func (h *Reader) Sum() string {
	return hex.EncodeToString(h.digest.Sum(nil))
}
