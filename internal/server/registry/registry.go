// Package registry maps project names to isolated tree namespaces. It is
// the single entry point for obtaining a project-scoped tree index; no
// other component constructs one directly.
package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shelf-sh/shelf/internal/server/tree"
)

var (
	// ErrNotFound means no project exists under the requested name.
	ErrNotFound = errors.New("project not found")
	// ErrExists means a project with that name already exists.
	ErrExists = errors.New("project already exists")
	// ErrInvalidName means the name is not a valid project slug.
	ErrInvalidName = errors.New("invalid project name")
)

// Project slugs are DNS-label-ish: no slashes, no spaces, no dots.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	name TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);
`

// Project is a named, isolated namespace of paths and their content.
type Project struct {
	Name      string `db:"name" json:"name"`
	CreatedAt string `db:"created_at" json:"createdAt"`
}

type Registry struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) (*Registry, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("init project registry: %w", err)
	}
	if err := tree.Migrate(db); err != nil {
		return nil, err
	}
	return &Registry{db: db}, nil
}

// Create registers a new project namespace.
func (r *Registry) Create(name string) (*Project, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	p := &Project{
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	_, err := r.db.Exec("INSERT INTO projects (name, created_at) VALUES (?, ?)", p.Name, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrExists, name)
		}
		return nil, fmt.Errorf("create project %s: %w", name, err)
	}
	return p, nil
}

// Get retrieves a project by name.
func (r *Registry) Get(name string) (*Project, error) {
	var p Project
	err := r.db.Get(&p, "SELECT name, created_at FROM projects WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", name, err)
	}
	return &p, nil
}

// List returns all projects in name order.
func (r *Registry) List() ([]*Project, error) {
	var projects []*Project
	if err := r.db.Select(&projects, "SELECT name, created_at FROM projects ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Tree returns the tree index scoped to an existing project.
func (r *Registry) Tree(name string) (*tree.Index, error) {
	if _, err := r.Get(name); err != nil {
		return nil, err
	}
	return tree.New(r.db, name), nil
}

// ValidName reports whether name is an acceptable project slug.
func ValidName(name string) bool {
	return slugPattern.MatchString(name)
}

// sqlite reports constraint failures as a generic error string; both the
// cgo and the wasm driver include this fragment.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
