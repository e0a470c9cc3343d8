// Package auth issues and validates project-scoped API tokens. Tokens are
// signed JWTs whose id is persisted, so revocation is a row delete. Every
// sync call is gated here before any core logic runs.
package auth

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrInvalidToken = errors.New("invalid api token")
	ErrTokenRevoked = errors.New("api token revoked")
	ErrNotFound     = errors.New("api token not found")
)

// Action is a permission checked against a token's project scope.
type Action string

const (
	// ActionSync covers manifest reads, uploads, and deletes.
	ActionSync Action = "sync"
	// ActionRead covers file fetches and listings.
	ActionRead Action = "read"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS api_tokens (
	id TEXT PRIMARY KEY,
	project TEXT NOT NULL,
	label TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_api_tokens_project ON api_tokens(project);
`

// TokenInfo is the persisted record of an issued token. The signed JWT
// itself is shown once at creation and never stored.
type TokenInfo struct {
	ID        string `db:"id" json:"id"`
	Project   string `db:"project" json:"project"`
	Label     string `db:"label" json:"label"`
	CreatedAt string `db:"created_at" json:"createdAt"`
}

// Identity is the authenticated principal of a request.
type Identity struct {
	TokenID string
	Project string
	Admin   bool
}

type Config struct {
	// TokenSecret signs API tokens. Required.
	TokenSecret string
	// TokenIssuer is the iss claim on issued tokens.
	TokenIssuer string
	// AdminToken guards project and token administration.
	AdminToken string
}

type AuthService struct {
	config *Config
	db     *sqlx.DB
}

func NewAuthService(config *Config, db *sqlx.DB) (*AuthService, error) {
	if config.TokenSecret == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("init token store: %w", err)
	}
	return &AuthService{config: config, db: db}, nil
}

// IssueToken mints a signed API token scoped to one project.
func (s *AuthService) IssueToken(ctx context.Context, project, label string) (string, *TokenInfo, error) {
	info := &TokenInfo{
		ID:        uuid.New().String(),
		Project:   project,
		Label:     label,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	signed, err := signToken(info, s.config)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO api_tokens (id, project, label, created_at) VALUES (?, ?, ?, ?)",
		info.ID, info.Project, info.Label, info.CreatedAt,
	)
	if err != nil {
		return "", nil, fmt.Errorf("persist token: %w", err)
	}
	return signed, info, nil
}

// Authenticate validates a bearer token and resolves its identity. A
// structurally valid token whose row was deleted is revoked.
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (*Identity, error) {
	if bearer == "" {
		return nil, ErrInvalidToken
	}

	if s.config.AdminToken != "" &&
		subtle.ConstantTimeCompare([]byte(bearer), []byte(s.config.AdminToken)) == 1 {
		return &Identity{Admin: true}, nil
	}

	claims, err := parseClaims(bearer, s.config.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	var info TokenInfo
	err = s.db.GetContext(ctx, &info, "SELECT id, project, label, created_at FROM api_tokens WHERE id = ?", claims.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenRevoked
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}

	return &Identity{TokenID: info.ID, Project: info.Project}, nil
}

// Authorize reports whether the identity may perform action on project.
// API tokens are scoped to exactly one project; the admin identity may do
// anything.
func (s *AuthService) Authorize(identity *Identity, project string, action Action) bool {
	if identity == nil {
		return false
	}
	if identity.Admin {
		return true
	}
	return identity.Project == project
}

// ListTokens returns the issued tokens for a project.
func (s *AuthService) ListTokens(ctx context.Context, project string) ([]*TokenInfo, error) {
	var tokens []*TokenInfo
	err := s.db.SelectContext(ctx, &tokens,
		"SELECT id, project, label, created_at FROM api_tokens WHERE project = ? ORDER BY created_at",
		project,
	)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// RevokeToken deletes a token record; the signed JWT stops authenticating
// immediately.
func (s *AuthService) RevokeToken(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM api_tokens WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
