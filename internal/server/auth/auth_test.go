package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelf-sh/shelf/internal/db"
	"github.com/shelf-sh/shelf/internal/utils"
)

func newTestAuth(t *testing.T, adminToken string) *AuthService {
	t.Helper()

	sqlDB, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	svc, err := NewAuthService(&Config{
		TokenSecret: utils.TokenHex(32),
		TokenIssuer: "shelf-test",
		AdminToken:  adminToken,
	}, sqlDB)
	require.NoError(t, err)
	return svc
}

func TestRequiresTokenSecret(t *testing.T) {
	sqlDB, err := db.NewSqliteDB()
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = NewAuthService(&Config{}, sqlDB)
	assert.Error(t, err)
}

func TestIssueAndAuthenticate(t *testing.T) {
	svc := newTestAuth(t, "")
	ctx := context.Background()

	signed, info, err := svc.IssueToken(ctx, "docs", "ci deploy")
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	assert.Equal(t, "docs", info.Project)
	assert.Equal(t, "ci deploy", info.Label)

	identity, err := svc.Authenticate(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, info.ID, identity.TokenID)
	assert.Equal(t, "docs", identity.Project)
	assert.False(t, identity.Admin)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	svc := newTestAuth(t, "")
	ctx := context.Background()

	for _, bearer := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := svc.Authenticate(ctx, bearer)
		assert.ErrorIs(t, err, ErrInvalidToken, "bearer %q", bearer)
	}
}

func TestAuthenticateRejectsForeignSignature(t *testing.T) {
	issuer := newTestAuth(t, "")
	verifier := newTestAuth(t, "")
	ctx := context.Background()

	signed, _, err := issuer.IssueToken(ctx, "docs", "x")
	require.NoError(t, err)

	// different secret, signature check fails
	_, err = verifier.Authenticate(ctx, signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevocation(t *testing.T) {
	svc := newTestAuth(t, "")
	ctx := context.Background()

	signed, info, err := svc.IssueToken(ctx, "docs", "short lived")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeToken(ctx, info.ID))

	// the JWT still verifies, the row is gone
	_, err = svc.Authenticate(ctx, signed)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	assert.ErrorIs(t, svc.RevokeToken(ctx, info.ID), ErrNotFound)
}

func TestAdminToken(t *testing.T) {
	admin := utils.TokenHex(24)
	svc := newTestAuth(t, admin)
	ctx := context.Background()

	identity, err := svc.Authenticate(ctx, admin)
	require.NoError(t, err)
	assert.True(t, identity.Admin)

	_, err = svc.Authenticate(ctx, admin+"x")
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	svc := newTestAuth(t, "")

	docs := &Identity{TokenID: "t1", Project: "docs"}
	admin := &Identity{Admin: true}

	assert.True(t, svc.Authorize(docs, "docs", ActionSync))
	assert.True(t, svc.Authorize(docs, "docs", ActionRead))
	assert.False(t, svc.Authorize(docs, "website", ActionSync))
	assert.True(t, svc.Authorize(admin, "anything", ActionSync))
	assert.False(t, svc.Authorize(nil, "docs", ActionRead))
}

func TestListTokens(t *testing.T) {
	svc := newTestAuth(t, "")
	ctx := context.Background()

	_, _, err := svc.IssueToken(ctx, "docs", "one")
	require.NoError(t, err)
	_, _, err = svc.IssueToken(ctx, "docs", "two")
	require.NoError(t, err)
	_, _, err = svc.IssueToken(ctx, "website", "other")
	require.NoError(t, err)

	tokens, err := svc.ListTokens(ctx, "docs")
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
	for _, tk := range tokens {
		assert.Equal(t, "docs", tk.Project)
	}
}
