package blob

import (
	"context"
	"io"

	"github.com/shelf-sh/shelf/internal/digest"
)

// Backend is the byte store under the content-addressed index. Keys are
// digests: a backend never sees logical paths, so identical content is
// stored once no matter how many tree entries reference it.
//
// Put must be idempotent for a given digest: the bytes for a digest never
// change, so overwriting with identical content is safe.
type Backend interface {
	Put(ctx context.Context, d digest.Digest, r io.Reader, size int64) error
	Open(ctx context.Context, d digest.Digest) (io.ReadCloser, error)
	Exists(ctx context.Context, d digest.Digest) (bool, error)
	Delete(ctx context.Context, d digest.Digest) error
}

// blobKey is the storage key for a digest, sharded by the first byte to
// keep directory fan-out (and S3 prefix heat) bounded.
func blobKey(d digest.Digest) string {
	hex := d.String()
	return hex[:2] + "/" + hex
}
