package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncerRejectsMissingDir(t *testing.T) {
	s := NewSyncer(nil, &SyncerConfig{
		Dir:     filepath.Join(t.TempDir(), "nope"),
		Project: "docs",
	})

	_, err := s.Run(context.Background())
	assert.ErrorContains(t, err, "not a directory")
}

func TestSyncerRejectsFileAsDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	s := NewSyncer(nil, &SyncerConfig{Dir: file, Project: "docs"})

	_, err := s.Run(context.Background())
	assert.ErrorContains(t, err, "not a directory")
}
