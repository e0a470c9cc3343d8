package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelf-sh/shelf/internal/db"
	"github.com/shelf-sh/shelf/internal/plan"
	"github.com/shelf-sh/shelf/internal/sdk"
	"github.com/shelf-sh/shelf/internal/server/auth"
	"github.com/shelf-sh/shelf/internal/server/blob"
	"github.com/shelf-sh/shelf/internal/utils"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	sqlDB, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	adminToken := utils.TokenHex(24)
	config := &Config{
		Blob: blob.Config{
			Backend:  blob.BackendLocal,
			LocalDir: t.TempDir(),
		},
		Auth: auth.Config{
			TokenSecret: utils.TokenHex(32),
			TokenIssuer: "shelf-test",
			AdminToken:  adminToken,
		},
	}

	services, err := NewServices(config, sqlDB)
	require.NoError(t, err)

	handler, err := SetupRoutes(config, services)
	require.NoError(t, err)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, adminToken
}

func TestTLSSecurityHeaders(t *testing.T) {
	sqlDB, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	// cert paths only gate the middleware here; no TLS handshake happens
	config := &Config{
		HTTP: HTTPConfig{CertFile: "server.crt", KeyFile: "server.key"},
		Blob: blob.Config{Backend: blob.BackendLocal, LocalDir: t.TempDir()},
		Auth: auth.Config{
			TokenSecret: utils.TokenHex(32),
			TokenIssuer: "shelf-test",
			AdminToken:  utils.TokenHex(24),
		},
	}
	require.True(t, config.HTTP.TLSEnabled())

	services, err := NewServices(config, sqlDB)
	require.NoError(t, err)

	handler, err := SetupRoutes(config, services)
	require.NoError(t, err)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	// plain http is redirected to https
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "https://"))

	// forwarded-https requests pass and carry the hardening headers
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-Proto", "https")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Strict-Transport-Security"), "max-age=")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestHealthAndIndex(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Shelf")
}

func TestAPIRequiresToken(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/projects")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEndToEndPublishAndServe(t *testing.T) {
	ts, adminToken := newTestServer(t)
	ctx := context.Background()

	admin, err := sdk.New(ts.URL, sdk.WithToken(adminToken))
	require.NoError(t, err)

	// admin provisions the project and a scoped token
	project, err := admin.Projects.Create(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", project.Name)

	_, err = admin.Projects.Create(ctx, "docs")
	require.Error(t, err, "duplicate create must conflict")

	tokenResp, err := admin.Projects.CreateToken(ctx, "docs", "ci")
	require.NoError(t, err)
	require.NotEmpty(t, tokenResp.Token)

	api, err := sdk.New(ts.URL, sdk.WithToken(tokenResp.Token))
	require.NoError(t, err)

	// an empty project has an empty manifest
	manifest, err := api.Sync.Manifest(ctx, "docs", "")
	require.NoError(t, err)
	assert.Empty(t, manifest.Manifest)

	// upload two files
	up, err := api.Sync.Upload(ctx, "docs", "index.html", strings.NewReader("<h1>docs</h1>"))
	require.NoError(t, err)
	assert.Equal(t, "index.html", up.Entry.Path)
	_, err = api.Sync.Upload(ctx, "docs", "guide/intro.md", strings.NewReader("# intro"))
	require.NoError(t, err)

	// fetch one back, then revalidate with its etag
	body, etag, notModified, err := api.Files.Fetch(ctx, "docs", "index.html", "")
	require.NoError(t, err)
	require.False(t, notModified)
	got, err := io.ReadAll(body)
	body.Close()
	require.NoError(t, err)
	assert.Equal(t, "<h1>docs</h1>", string(got))
	require.NotEmpty(t, etag)

	_, _, notModified, err = api.Files.Fetch(ctx, "docs", "index.html", etag)
	require.NoError(t, err)
	assert.True(t, notModified)

	// listing sees both entries in path order
	list, err := api.Files.List(ctx, "docs", "")
	require.NoError(t, err)
	require.Len(t, list.Entries, 2)
	assert.Equal(t, "guide/intro.md", list.Entries[0].Path)
	assert.Equal(t, "index.html", list.Entries[1].Path)

	// plan an incremental change: keep index, drop the guide
	local := manifestOf(t, api, "docs")
	local = local[1:] // drop guide/intro.md
	planResp, err := api.Sync.Plan(ctx, "docs", "", local)
	require.NoError(t, err)
	require.Len(t, planResp.Plan.Deletes, 1)
	assert.Empty(t, planResp.Plan.Puts)

	commit, err := api.Sync.Commit(ctx, "docs", []string{"guide/intro.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{"guide/intro.md"}, commit.Deleted)

	_, _, _, err = api.Files.Fetch(ctx, "docs", "guide/intro.md", "")
	assert.ErrorIs(t, err, sdk.ErrNotFound)
}

func TestProjectScopeEnforced(t *testing.T) {
	ts, adminToken := newTestServer(t)
	ctx := context.Background()

	admin, err := sdk.New(ts.URL, sdk.WithToken(adminToken))
	require.NoError(t, err)

	_, err = admin.Projects.Create(ctx, "docs")
	require.NoError(t, err)
	_, err = admin.Projects.Create(ctx, "website")
	require.NoError(t, err)

	tokenResp, err := admin.Projects.CreateToken(ctx, "docs", "ci")
	require.NoError(t, err)

	api, err := sdk.New(ts.URL, sdk.WithToken(tokenResp.Token))
	require.NoError(t, err)

	// docs token cannot touch website
	_, err = api.Sync.Upload(ctx, "website", "a.txt", strings.NewReader("x"))
	require.Error(t, err)

	// nor administer projects
	_, err = api.Projects.Create(ctx, "another")
	require.Error(t, err)

	// revoked tokens stop working immediately
	require.NoError(t, admin.Projects.RevokeToken(ctx, tokenResp.Info.ID))
	_, err = api.Sync.Manifest(ctx, "docs", "")
	require.Error(t, err)
}

func TestServeDirectoryIndex(t *testing.T) {
	ts, adminToken := newTestServer(t)
	ctx := context.Background()

	admin, err := sdk.New(ts.URL, sdk.WithToken(adminToken))
	require.NoError(t, err)
	_, err = admin.Projects.Create(ctx, "docs")
	require.NoError(t, err)

	_, err = admin.Sync.Upload(ctx, "docs", "index.html", strings.NewReader("root index"))
	require.NoError(t, err)
	_, err = admin.Sync.Upload(ctx, "docs", "guide/index.html", strings.NewReader("guide index"))
	require.NoError(t, err)

	client := &http.Client{}

	// directory with trailing slash resolves to its index file
	resp, err := client.Get(ts.URL + "/files/docs/guide/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "guide index", string(body))

	// without the slash the server redirects so relative links work
	noRedirect := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err = noRedirect.Get(ts.URL + "/files/docs/guide")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.True(t, strings.HasSuffix(resp.Header.Get("Location"), "/files/docs/guide/"))
}

func manifestOf(t *testing.T, api *sdk.Client, project string) plan.Manifest {
	t.Helper()
	resp, err := api.Sync.Manifest(context.Background(), project, "")
	require.NoError(t, err)
	return resp.Manifest
}
