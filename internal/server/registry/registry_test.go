package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelf-sh/shelf/internal/db"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	sqlDB, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	reg, err := New(sqlDB)
	require.NoError(t, err)
	return reg
}

func TestCreateAndGet(t *testing.T) {
	reg := newTestRegistry(t)

	p, err := reg.Create("docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", p.Name)
	assert.NotEmpty(t, p.CreatedAt)

	got, err := reg.Get("docs")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
}

func TestCreateConflict(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Create("docs")
	require.NoError(t, err)

	_, err = reg.Create("docs")
	assert.ErrorIs(t, err, ErrExists)
}

func TestCreateInvalidName(t *testing.T) {
	invalid := []string{
		"",
		"Docs",
		"-docs",
		"my docs",
		"docs/website",
		"a-very-long-name-that-goes-well-past-the-sixty-three-character-limit",
	}
	reg := newTestRegistry(t)
	for _, name := range invalid {
		_, err := reg.Create(name)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}

	valid := []string{"docs", "my-site", "a", "x9", "9x"}
	for _, name := range valid {
		assert.True(t, ValidName(name), "name %q", name)
	}
}

func TestGetMissing(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	reg := newTestRegistry(t)

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		_, err := reg.Create(name)
		require.NoError(t, err)
	}

	projects, err := reg.List()
	require.NoError(t, err)
	require.Len(t, projects, 3)
	assert.Equal(t, "alpha", projects[0].Name)
	assert.Equal(t, "bravo", projects[1].Name)
	assert.Equal(t, "charlie", projects[2].Name)
}

func TestTreeHandle(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Tree("ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.Create("docs")
	require.NoError(t, err)

	idx, err := reg.Tree("docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", idx.Project())
}
