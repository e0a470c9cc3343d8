// Package digest computes and compares content fingerprints.
// A digest is the BLAKE2b-256 hash of a blob's exact byte content and is
// the sole equality test for "has this file changed".
package digest

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Size is the length of a digest in bytes.
const Size = blake2b.Size256

// Digest is a fixed-length fingerprint of a byte sequence.
type Digest [Size]byte

// Sum returns the digest of b. The digest of empty input is well-defined
// and distinct from the zero Digest.
func Sum(b []byte) Digest {
	return blake2b.Sum256(b)
}

// SumReader consumes r and returns its digest along with the number of
// bytes read.
func SumReader(r io.Reader) (Digest, int64, error) {
	h := newHasher()
	n, err := io.Copy(h, r)
	if err != nil {
		return Digest{}, n, fmt.Errorf("digest: %w", err)
	}
	var d Digest
	h.Sum(d[:0])
	return d, n, nil
}

// Parse decodes a hex-encoded digest as produced by String.
func Parse(s string) (Digest, error) {
	var d Digest
	if hex.DecodedLen(len(s)) != Size {
		return d, fmt.Errorf("digest: invalid length %d", len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("digest: %w", err)
	}
	return d, nil
}

// Equal reports whether two digests are byte-wise identical.
func Equal(a, b Digest) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// Equal reports whether d and other are byte-wise identical.
func (d Digest) Equal(other Digest) bool {
	return Equal(d, other)
}

// IsZero reports whether d is the zero value, i.e. "absent".
func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText encodes the digest as lowercase hex for wire formats.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a hex digest as produced by MarshalText.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Short returns a truncated digest for log output.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:6])
}

func newHasher() hash.Hash {
	// blake2b.New256 only errors when a key is passed
	h, _ := blake2b.New256(nil)
	return h
}

// Writer wraps an io.Writer and fingerprints everything written through it.
type Writer struct {
	w io.Writer
	h hash.Hash
	n int64
}

// NewWriter returns a Writer teeing into w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, h: newHasher()}
}

func (dw *Writer) Write(p []byte) (int, error) {
	n, err := dw.w.Write(p)
	if n > 0 {
		dw.h.Write(p[:n])
		dw.n += int64(n)
	}
	return n, err
}

// Digest returns the fingerprint of all bytes written so far.
func (dw *Writer) Digest() Digest {
	var d Digest
	dw.h.Sum(d[:0])
	return d
}

// Size returns the number of bytes written so far.
func (dw *Writer) Size() int64 {
	return dw.n
}
