package blob

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shelf-sh/shelf/internal/digest"
)

// The blobs table is the authoritative reference ledger. refs counts live
// tree entries across all projects; released_at is set when refs drops to
// zero and cleared by any put/retain, giving the sweeper its grace period.
//
// Counter updates are single UPDATE statements so concurrent sessions
// cannot lose an increment (SQLite serializes writers).
const indexSchemaSQL = `
CREATE TABLE IF NOT EXISTS blobs (
	digest TEXT PRIMARY KEY,
	size INTEGER NOT NULL,
	refs INTEGER NOT NULL DEFAULT 0,
	released_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_blobs_released ON blobs(released_at) WHERE released_at IS NOT NULL;
`

// BlobInfo is one row of the reference ledger.
type BlobInfo struct {
	Digest     string         `db:"digest"`
	Size       int64          `db:"size"`
	Refs       int64          `db:"refs"`
	ReleasedAt sql.NullString `db:"released_at"`
}

// Index tracks blob sizes and reference counts in SQLite.
type Index struct {
	db *sqlx.DB
}

func newIndex(db *sqlx.DB) (*Index, error) {
	if _, err := db.Exec(indexSchemaSQL); err != nil {
		return nil, fmt.Errorf("init blob index: %w", err)
	}
	return &Index{db: db}, nil
}

// Get retrieves the ledger row for a digest.
func (idx *Index) Get(d digest.Digest) (*BlobInfo, bool) {
	var info BlobInfo
	err := idx.db.Get(&info, "SELECT digest, size, refs, released_at FROM blobs WHERE digest = ?", d.String())
	if err != nil {
		return nil, false
	}
	return &info, true
}

// Ensure records that bytes for a digest exist, creating the row at zero
// refs if needed. Clearing released_at is the pending-reference marker: a
// blob being newly written cannot be swept before its first retain lands.
func (idx *Index) Ensure(d digest.Digest, size int64) error {
	_, err := idx.db.Exec(`
		INSERT INTO blobs (digest, size, refs, released_at) VALUES (?, ?, 0, NULL)
		ON CONFLICT(digest) DO UPDATE SET released_at = NULL`,
		d.String(), size,
	)
	if err != nil {
		return fmt.Errorf("ensure blob %s: %w", d.Short(), err)
	}
	return nil
}

// Retain increments the reference count. Retaining a digest with no
// ledger row is a reference-integrity violation.
func (idx *Index) Retain(d digest.Digest) error {
	return retain(idx.db, d)
}

// Release decrements the reference count. At zero the blob is stamped
// released, making it a sweep candidate after the grace period. Bytes are
// never deleted here.
func (idx *Index) Release(d digest.Digest) error {
	return release(idx.db, d)
}

// Count returns the number of ledger rows.
func (idx *Index) Count() int {
	var n int
	if err := idx.db.Get(&n, "SELECT COUNT(*) FROM blobs"); err != nil {
		return 0
	}
	return n
}

// sweepCandidates returns digests unreferenced since before cutoff.
func (idx *Index) sweepCandidates(cutoff time.Time) ([]string, error) {
	var digests []string
	err := idx.db.Select(&digests, `
		SELECT digest FROM blobs
		WHERE refs <= 0 AND released_at IS NOT NULL AND released_at < ?
		ORDER BY digest`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("sweep candidates: %w", err)
	}
	return digests, nil
}

// markOrphans stamps rows that sit at zero refs without a release
// timestamp (a put whose retain never arrived). They become sweep
// candidates one grace period later.
func (idx *Index) markOrphans(now time.Time) error {
	_, err := idx.db.Exec(`
		UPDATE blobs SET released_at = ?
		WHERE refs <= 0 AND released_at IS NULL`,
		now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("mark orphans: %w", err)
	}
	return nil
}

// dropIfUnreferenced removes the ledger row only if the digest is still
// unreferenced and past its grace period. Returns true when the row was
// removed and the bytes may be deleted.
func (idx *Index) dropIfUnreferenced(d string, cutoff time.Time) (bool, error) {
	res, err := idx.db.Exec(`
		DELETE FROM blobs
		WHERE digest = ? AND refs <= 0 AND released_at IS NOT NULL AND released_at < ?`,
		d, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("drop blob %s: %w", d, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// execer covers both *sqlx.DB and *sqlx.Tx so the tree index can adjust
// refcounts inside its own entry transactions.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func retain(e execer, d digest.Digest) error {
	res, err := e.Exec(
		"UPDATE blobs SET refs = refs + 1, released_at = NULL WHERE digest = ?",
		d.String(),
	)
	if err != nil {
		return fmt.Errorf("retain blob %s: %w", d.Short(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("retain blob %s: %w", d.Short(), ErrIntegrity)
	}
	return nil
}

func release(e execer, d digest.Digest) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := e.Exec(`
		UPDATE blobs SET
			refs = refs - 1,
			released_at = CASE WHEN refs - 1 <= 0 THEN ? ELSE released_at END
		WHERE digest = ?`,
		now, d.String(),
	)
	if err != nil {
		return fmt.Errorf("release blob %s: %w", d.Short(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("release blob %s: %w", d.Short(), ErrIntegrity)
	}
	return nil
}

// RetainTx and ReleaseTx adjust refcounts inside a caller-owned
// transaction. The tree index uses these so an entry mutation and its
// refcount adjustment commit or roll back together.
func RetainTx(tx *sqlx.Tx, d digest.Digest) error {
	return retain(tx, d)
}

func ReleaseTx(tx *sqlx.Tx, d digest.Digest) error {
	return release(tx, d)
}
