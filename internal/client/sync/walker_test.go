package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelf-sh/shelf/internal/digest"
)

func writeFile(t *testing.T, dir, path, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(path))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestBuildManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "bee")
	writeFile(t, dir, "a.txt", "ay")
	writeFile(t, dir, "sub/c.txt", "sea")

	m, err := BuildManifest(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Len(t, m, 3)

	assert.Equal(t, "a.txt", m[0].Path)
	assert.Equal(t, "b.txt", m[1].Path)
	assert.Equal(t, "sub/c.txt", m[2].Path)

	assert.True(t, m[0].Digest.Equal(digest.Sum([]byte("ay"))))
	assert.Equal(t, int64(3), m[1].Size)
}

func TestBuildManifestEmptyDir(t *testing.T) {
	m, err := BuildManifest(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestBuildManifestHonorsIgnoreRules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.txt", "keep")
	writeFile(t, dir, "note.tmp", "scratch")
	writeFile(t, dir, ".git/config", "[core]")
	writeFile(t, dir, "build/out.bin", "binary")
	writeFile(t, dir, IgnoreFileName, "build/\n*.secret\n")
	writeFile(t, dir, "api.secret", "hush")

	m, err := BuildManifest(context.Background(), dir, NewIgnoreList(dir))
	require.NoError(t, err)

	require.Len(t, m, 1)
	assert.Equal(t, "keep.txt", m[0].Path)
}

func TestIgnoreListDefaults(t *testing.T) {
	ignore := NewIgnoreList(t.TempDir())

	assert.True(t, ignore.ShouldIgnore(".DS_Store"))
	assert.True(t, ignore.ShouldIgnore("scratch.tmp"))
	assert.True(t, ignore.ShouldIgnore(".git/"))
	assert.False(t, ignore.ShouldIgnore("index.html"))
	assert.False(t, ignore.ShouldIgnore("docs/guide.md"))
}
