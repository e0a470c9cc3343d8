package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	t.Run("expands tilde", func(t *testing.T) {
		resolved, err := ResolvePath("~/data")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "data"), resolved)
	})

	t.Run("absolutizes relative", func(t *testing.T) {
		resolved, err := ResolvePath("some/dir")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(resolved))
	})

	t.Run("cleans", func(t *testing.T) {
		resolved, err := ResolvePath("/a/b/../c/")
		require.NoError(t, err)
		assert.Equal(t, "/a/c", resolved)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ResolvePath("")
		assert.Error(t, err)
	})
}

func TestDirExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(file))
	assert.False(t, DirExists(filepath.Join(dir, "missing")))

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(dir))
}
