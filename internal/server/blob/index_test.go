package blob

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelf-sh/shelf/internal/db"
	"github.com/shelf-sh/shelf/internal/digest"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()

	sqlDB, err := db.NewSqliteDB(db.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	idx, err := newIndex(sqlDB)
	require.NoError(t, err)
	return idx
}

func TestIndexEnsureIdempotent(t *testing.T) {
	idx := newTestIndex(t)
	d := digest.Sum([]byte("x"))

	require.NoError(t, idx.Ensure(d, 1))
	require.NoError(t, idx.Ensure(d, 1))
	assert.Equal(t, 1, idx.Count())

	info, ok := idx.Get(d)
	require.True(t, ok)
	assert.Equal(t, int64(0), info.Refs)
	assert.False(t, info.ReleasedAt.Valid)
}

// Concurrent retains and releases must never lose an update: the counter
// lands exactly where the arithmetic says.
func TestIndexConcurrentRefCounting(t *testing.T) {
	idx := newTestIndex(t)
	d := digest.Sum([]byte("contended"))
	require.NoError(t, idx.Ensure(d, 10))

	const workers = 100
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			require.NoError(t, idx.Retain(d))
		}()
	}
	wg.Wait()

	info, ok := idx.Get(d)
	require.True(t, ok)
	assert.Equal(t, int64(workers), info.Refs)
	assert.False(t, info.ReleasedAt.Valid)

	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			require.NoError(t, idx.Release(d))
		}()
	}
	wg.Wait()

	info, ok = idx.Get(d)
	require.True(t, ok)
	assert.Equal(t, int64(0), info.Refs)
	assert.True(t, info.ReleasedAt.Valid, "zero refs must be stamped released")
}

func TestIndexRetainClearsReleaseStamp(t *testing.T) {
	idx := newTestIndex(t)
	d := digest.Sum([]byte("revived"))

	require.NoError(t, idx.Ensure(d, 1))
	require.NoError(t, idx.Retain(d))
	require.NoError(t, idx.Release(d))

	info, _ := idx.Get(d)
	require.True(t, info.ReleasedAt.Valid)

	require.NoError(t, idx.Retain(d))
	info, _ = idx.Get(d)
	assert.False(t, info.ReleasedAt.Valid)
}
