// Package tree maintains the per-project manifest: the authoritative
// mapping from logical path to content fingerprint and metadata. Entry
// mutations commit in the same SQLite transaction as their blob refcount
// adjustment, so a crash can never orphan a reference or dangle an entry.
package tree

import (
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shelf-sh/shelf/internal/digest"
	"github.com/shelf-sh/shelf/internal/plan"
	"github.com/shelf-sh/shelf/internal/server/blob"
)

// ErrNotFound means no entry exists at the requested path.
var ErrNotFound = errors.New("tree entry not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
	project TEXT NOT NULL,
	path TEXT NOT NULL,
	digest TEXT NOT NULL,
	size INTEGER NOT NULL,
	modified TEXT NOT NULL,
	content_type TEXT NOT NULL,
	PRIMARY KEY (project, path)
);

CREATE INDEX IF NOT EXISTS idx_entries_digest ON entries(digest);
`

// Entry is one path binding within a project.
type Entry struct {
	Project     string `db:"project" json:"project"`
	Path        string `db:"path" json:"path"`
	Digest      string `db:"digest" json:"digest"`
	Size        int64  `db:"size" json:"size"`
	Modified    string `db:"modified" json:"modified"`
	ContentType string `db:"content_type" json:"contentType"`
}

// ParsedDigest decodes the entry's fingerprint.
func (e *Entry) ParsedDigest() (digest.Digest, error) {
	return digest.Parse(e.Digest)
}

// Migrate creates the entries schema. Called once by the registry.
func Migrate(db *sqlx.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("init tree index: %w", err)
	}
	return nil
}

// Index is a project-scoped view over the entries table. Construct these
// through the project registry only; the registry is what guarantees the
// project exists and namespaces are isolated.
type Index struct {
	db      *sqlx.DB
	project string
}

// New binds an index to a project namespace.
func New(db *sqlx.DB, project string) *Index {
	return &Index{db: db, project: project}
}

// Project returns the namespace this index is bound to.
func (t *Index) Project() string {
	return t.project
}

// Get retrieves the entry at path.
func (t *Index) Get(path string) (*Entry, error) {
	var e Entry
	err := t.db.Get(&e, `
		SELECT project, path, digest, size, modified, content_type
		FROM entries WHERE project = ? AND path = ?`,
		t.project, path,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", path, err)
	}
	return &e, nil
}

// List streams entries under prefix in lexicographic path order. The
// cursor pages through SQLite, so arbitrarily large trees never
// materialize in memory.
func (t *Index) List(prefix string) iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		query := `
			SELECT project, path, digest, size, modified, content_type
			FROM entries
			WHERE project = ? AND path >= ?`
		args := []any{t.project, prefix}
		if end, ok := prefixEnd(prefix); ok {
			query += " AND path < ?"
			args = append(args, end)
		}
		query += " ORDER BY path"

		rows, err := t.db.Queryx(query, args...)
		if err != nil {
			slog.Error("list entries", "project", t.project, "prefix", prefix, "error", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var e Entry
			if err := rows.StructScan(&e); err != nil {
				slog.Error("scan entry", "project", t.project, "error", err)
				return
			}
			if !yield(&e) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			slog.Error("iterate entries", "project", t.project, "error", err)
		}
	}
}

// Manifest returns the sorted (path, digest, size) view of a subtree, the
// input shape the sync planner works on.
func (t *Index) Manifest(prefix string) (plan.Manifest, error) {
	var manifest plan.Manifest
	for e := range t.List(prefix) {
		d, err := e.ParsedDigest()
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Path, err)
		}
		manifest = append(manifest, plan.Entry{Path: e.Path, Digest: d, Size: e.Size})
	}
	return manifest, nil
}

// Upsert binds path to a blob, retaining the new digest and releasing the
// replaced one in the same transaction as the entry write. Re-upserting
// an identical binding leaves the refcount untouched.
func (t *Index) Upsert(path string, ref *blob.Ref, contentType string) (*Entry, error) {
	entry := &Entry{
		Project:     t.project,
		Path:        path,
		Digest:      ref.Digest.String(),
		Size:        ref.Size,
		Modified:    time.Now().UTC().Format(time.RFC3339),
		ContentType: contentType,
	}

	tx, err := t.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", path, err)
	}
	defer tx.Rollback()

	var oldDigest string
	err = tx.Get(&oldDigest, "SELECT digest FROM entries WHERE project = ? AND path = ?", t.project, path)
	replacing := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("upsert %s: %w", path, err)
	}

	if replacing && oldDigest == entry.Digest {
		// unchanged binding; refresh metadata only
		if _, err := tx.Exec(`
			UPDATE entries SET size = ?, modified = ?, content_type = ?
			WHERE project = ? AND path = ?`,
			entry.Size, entry.Modified, entry.ContentType, t.project, path,
		); err != nil {
			return nil, fmt.Errorf("upsert %s: %w", path, err)
		}
		return entry, tx.Commit()
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO entries (project, path, digest, size, modified, content_type)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Project, entry.Path, entry.Digest, entry.Size, entry.Modified, entry.ContentType,
	); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", path, err)
	}

	if err := blob.RetainTx(tx, ref.Digest); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", path, err)
	}
	if replacing {
		old, err := digest.Parse(oldDigest)
		if err != nil {
			return nil, fmt.Errorf("upsert %s: %w", path, err)
		}
		if err := blob.ReleaseTx(tx, old); err != nil {
			return nil, fmt.Errorf("upsert %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", path, err)
	}
	return entry, nil
}

// Remove deletes the entry at path and releases its blob reference in one
// transaction.
func (t *Index) Remove(path string) error {
	tx, err := t.db.Beginx()
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	defer tx.Rollback()

	var oldDigest string
	err = tx.Get(&oldDigest, "SELECT digest FROM entries WHERE project = ? AND path = ?", t.project, path)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	if _, err := tx.Exec("DELETE FROM entries WHERE project = ? AND path = ?", t.project, path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	old, err := digest.Parse(oldDigest)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if err := blob.ReleaseTx(tx, old); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Count returns the number of entries in the project.
func (t *Index) Count() int {
	var n int
	if err := t.db.Get(&n, "SELECT COUNT(*) FROM entries WHERE project = ?", t.project); err != nil {
		return 0
	}
	return n
}

// prefixEnd returns the smallest string greater than every string with
// the given prefix, for a half-open range scan over the path index.
// ok is false when no upper bound exists (empty or all-0xff prefix).
func prefixEnd(prefix string) (end string, ok bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}
