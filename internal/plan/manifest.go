// Package plan computes the minimal set of operations needed to make a
// remote file tree byte-for-byte equivalent to a local one. It is pure:
// both the server and the client CLI plan with the same code so plans are
// reproducible across the wire.
package plan

import (
	"sort"
	"strings"

	"github.com/shelf-sh/shelf/internal/digest"
)

// Entry is one manifest row: a logical path bound to a content fingerprint.
type Entry struct {
	Path   string        `json:"path"`
	Digest digest.Digest `json:"digest"`
	Size   int64         `json:"size"`
}

// Manifest is a finite sequence of entries. Planning requires it sorted by
// path; SortManifest establishes the order when the producer cannot.
type Manifest []Entry

// SortManifest orders m by byte-wise path comparison. No locale-aware
// collation: plans must be identical across client and server.
func SortManifest(m Manifest) {
	sort.Slice(m, func(i, j int) bool {
		return m[i].Path < m[j].Path
	})
}

// IsSorted reports whether m is in byte-wise path order.
func IsSorted(m Manifest) bool {
	return sort.SliceIsSorted(m, func(i, j int) bool {
		return m[i].Path < m[j].Path
	})
}

// NormalizePath rewrites p to the canonical manifest form: forward
// slashes, no leading slash, no empty segments.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		out = append(out, part)
	}
	return strings.Join(out, "/")
}
