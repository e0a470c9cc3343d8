package tree

import (
	"bytes"
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelf-sh/shelf/internal/db"
	"github.com/shelf-sh/shelf/internal/server/blob"
)

func newTestTree(t *testing.T) (*Index, *blob.Service, *sqlx.DB) {
	t.Helper()

	sqlDB, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	blobSvc, err := blob.NewService(&blob.Config{
		Backend:  blob.BackendLocal,
		LocalDir: t.TempDir(),
	}, sqlDB)
	require.NoError(t, err)

	require.NoError(t, Migrate(sqlDB))
	return New(sqlDB, "docs"), blobSvc, sqlDB
}

func putBlob(t *testing.T, svc *blob.Service, content string) *blob.Ref {
	t.Helper()
	ref, err := svc.Put(context.Background(), bytes.NewReader([]byte(content)))
	require.NoError(t, err)
	return ref
}

func refCount(t *testing.T, svc *blob.Service, ref *blob.Ref) int64 {
	t.Helper()
	info, ok := svc.Index().Get(ref.Digest)
	require.True(t, ok)
	return info.Refs
}

func TestUpsertRetainsBlob(t *testing.T) {
	idx, blobSvc, _ := newTestTree(t)
	ref := putBlob(t, blobSvc, "v1")

	entry, err := idx.Upsert("guide.md", ref, "text/markdown")
	require.NoError(t, err)
	assert.Equal(t, "docs", entry.Project)
	assert.Equal(t, ref.Digest.String(), entry.Digest)
	assert.Equal(t, int64(1), refCount(t, blobSvc, ref))

	got, err := idx.Get("guide.md")
	require.NoError(t, err)
	assert.Equal(t, entry.Digest, got.Digest)
	assert.Equal(t, "text/markdown", got.ContentType)
}

func TestUpsertReplaceSwapsReferences(t *testing.T) {
	idx, blobSvc, _ := newTestTree(t)
	old := putBlob(t, blobSvc, "v1")
	newer := putBlob(t, blobSvc, "v2")

	_, err := idx.Upsert("guide.md", old, "text/markdown")
	require.NoError(t, err)
	_, err = idx.Upsert("guide.md", newer, "text/markdown")
	require.NoError(t, err)

	assert.Equal(t, int64(0), refCount(t, blobSvc, old))
	assert.Equal(t, int64(1), refCount(t, blobSvc, newer))

	info, _ := blobSvc.Index().Get(old.Digest)
	assert.True(t, info.ReleasedAt.Valid, "replaced blob must be stamped released")
}

func TestUpsertUnchangedKeepsRefCount(t *testing.T) {
	idx, blobSvc, _ := newTestTree(t)
	ref := putBlob(t, blobSvc, "same")

	_, err := idx.Upsert("a.txt", ref, "text/plain")
	require.NoError(t, err)
	_, err = idx.Upsert("a.txt", ref, "text/plain")
	require.NoError(t, err)

	assert.Equal(t, int64(1), refCount(t, blobSvc, ref))
}

func TestSharedBlobAcrossPaths(t *testing.T) {
	idx, blobSvc, sqlDB := newTestTree(t)
	ref := putBlob(t, blobSvc, "shared bytes")

	_, err := idx.Upsert("a.bin", ref, "application/octet-stream")
	require.NoError(t, err)
	_, err = idx.Upsert("b.bin", ref, "application/octet-stream")
	require.NoError(t, err)

	// same content in another project still counts one ref per entry
	other := New(sqlDB, "website")
	_, err = other.Upsert("c.bin", ref, "application/octet-stream")
	require.NoError(t, err)

	assert.Equal(t, int64(3), refCount(t, blobSvc, ref))
	assert.Equal(t, 1, blobSvc.Index().Count(), "one stored blob backs all entries")

	require.NoError(t, idx.Remove("a.bin"))
	require.NoError(t, idx.Remove("b.bin"))
	assert.Equal(t, int64(1), refCount(t, blobSvc, ref))
}

func TestRemove(t *testing.T) {
	idx, blobSvc, _ := newTestTree(t)
	ref := putBlob(t, blobSvc, "bye")

	_, err := idx.Upsert("a.txt", ref, "text/plain")
	require.NoError(t, err)
	require.NoError(t, idx.Remove("a.txt"))

	_, err = idx.Get("a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(0), refCount(t, blobSvc, ref))

	assert.ErrorIs(t, idx.Remove("a.txt"), ErrNotFound)
}

func TestListPrefix(t *testing.T) {
	idx, blobSvc, _ := newTestTree(t)
	ref := putBlob(t, blobSvc, "content")

	for _, path := range []string{"docs/b.md", "docs/a.md", "docs2/x.md", "readme.md", "docs/sub/c.md"} {
		_, err := idx.Upsert(path, ref, "text/markdown")
		require.NoError(t, err)
	}

	var got []string
	for e := range idx.List("docs/") {
		got = append(got, e.Path)
	}
	// sorted, and "docs2/" must not leak into the "docs/" subtree
	assert.Equal(t, []string{"docs/a.md", "docs/b.md", "docs/sub/c.md"}, got)

	got = nil
	for e := range idx.List("") {
		got = append(got, e.Path)
	}
	assert.Len(t, got, 5)
	assert.IsNonDecreasing(t, got)
}

func TestListStopsEarly(t *testing.T) {
	idx, blobSvc, _ := newTestTree(t)
	ref := putBlob(t, blobSvc, "x")

	for _, path := range []string{"a", "b", "c"} {
		_, err := idx.Upsert(path, ref, "text/plain")
		require.NoError(t, err)
	}

	n := 0
	for range idx.List("") {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestManifest(t *testing.T) {
	idx, blobSvc, _ := newTestTree(t)
	ref1 := putBlob(t, blobSvc, "one")
	ref2 := putBlob(t, blobSvc, "two")

	_, err := idx.Upsert("b.txt", ref2, "text/plain")
	require.NoError(t, err)
	_, err = idx.Upsert("a.txt", ref1, "text/plain")
	require.NoError(t, err)

	m, err := idx.Manifest("")
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.Equal(t, "a.txt", m[0].Path)
	assert.True(t, m[0].Digest.Equal(ref1.Digest))
	assert.Equal(t, "b.txt", m[1].Path)
	assert.Equal(t, ref2.Size, m[1].Size)
}

func TestProjectIsolation(t *testing.T) {
	idx, blobSvc, sqlDB := newTestTree(t)
	ref := putBlob(t, blobSvc, "mine")

	_, err := idx.Upsert("a.txt", ref, "text/plain")
	require.NoError(t, err)

	other := New(sqlDB, "website")
	_, err = other.Get("a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, other.Count())
	assert.Equal(t, 1, idx.Count())
}

func TestPrefixEnd(t *testing.T) {
	tests := []struct {
		prefix string
		end    string
		ok     bool
	}{
		{"docs/", "docs0", true},
		{"a", "b", true},
		{"", "", false},
		{"\xff\xff", "", false},
		{"a\xff", "b", true},
	}
	for _, tc := range tests {
		end, ok := prefixEnd(tc.prefix)
		assert.Equal(t, tc.ok, ok, "prefix %q", tc.prefix)
		if ok {
			assert.Equal(t, tc.end, end, "prefix %q", tc.prefix)
		}
	}
}
