package files

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gin-gonic/gin"
	"github.com/shelf-sh/shelf/internal/plan"
	"github.com/shelf-sh/shelf/internal/server/auth"
	"github.com/shelf-sh/shelf/internal/server/blob"
	"github.com/shelf-sh/shelf/internal/server/middlewares"
	"github.com/shelf-sh/shelf/internal/server/registry"
	"github.com/shelf-sh/shelf/internal/server/tree"
)

const indexCacheSize = 4096

// FilesHandler serves stored content back by path and lists directory
// trees. Serving is read-only and public, the way published artifact
// sites are consumed.
type FilesHandler struct {
	registry *registry.Registry
	blob     *blob.Service
	auth     *auth.AuthService

	// directory path -> resolved index.* path. Resolution needs a prefix
	// scan; the cached result is revalidated with a cheap primary-key
	// read, so a stale hit falls back to a fresh scan.
	indexPaths *lru.Cache[string, string]
}

func New(reg *registry.Registry, blobSvc *blob.Service, authSvc *auth.AuthService) (*FilesHandler, error) {
	indexPaths, err := lru.New[string, string](indexCacheSize)
	if err != nil {
		return nil, err
	}
	return &FilesHandler{registry: reg, blob: blobSvc, auth: authSvc, indexPaths: indexPaths}, nil
}

// Serve handles GET/HEAD for one file. ETag is the content digest, so
// If-None-Match short-circuits to 304 without touching the blob store. A
// directory path resolves to its index.* file, redirecting to the
// trailing-slash form first so relative links work.
func (h *FilesHandler) Serve(ctx *gin.Context) {
	project := ctx.Param("project")
	path := plan.NormalizePath(ctx.Param("path"))

	idx, err := h.registry.Tree(project)
	if err != nil {
		ctx.PureJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	entry, err := idx.Get(path)
	if err != nil {
		if errors.Is(err, tree.ErrNotFound) {
			// directory root: find an index.* below it
			indexEntry, redirect := h.lookupIndex(idx, project, ctx.Param("path"), path)
			if indexEntry == nil {
				ctx.PureJSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			if redirect {
				ctx.Redirect(http.StatusTemporaryRedirect, ctx.Request.URL.Path+"/")
				return
			}
			entry = indexEntry
		} else {
			ctx.Error(err)
			ctx.PureJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	ctx.Header("ETag", `"`+entry.Digest+`"`)
	if match := ctx.GetHeader("If-None-Match"); match != "" && etagMatches(match, entry.Digest) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.Header("Content-Type", entry.ContentType)
	ctx.Header("Content-Length", strconv.FormatInt(entry.Size, 10))

	if ctx.Request.Method == http.MethodHead {
		ctx.Status(http.StatusOK)
		return
	}

	d, err := entry.ParsedDigest()
	if err != nil {
		ctx.Error(err)
		ctx.PureJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rc, err := h.blob.Open(ctx.Request.Context(), d)
	if err != nil {
		ctx.Error(fmt.Errorf("serve %s/%s: %w", project, entry.Path, err))
		if errors.Is(err, blob.ErrIntegrity) {
			ctx.PureJSON(http.StatusInternalServerError, gin.H{"error": "storage integrity error"})
		} else {
			ctx.PureJSON(http.StatusNotFound, gin.H{"error": "not found"})
		}
		return
	}
	defer rc.Close()

	ctx.Status(http.StatusOK)
	if _, err := io.Copy(ctx.Writer, rc); err != nil {
		// client went away mid-transfer; nothing to send anymore
		ctx.Error(err)
	}
}

// List streams the entries under a prefix.
func (h *FilesHandler) List(ctx *gin.Context) {
	project := ctx.Query("project")
	prefix := ctx.Query("prefix")
	if project == "" {
		ctx.PureJSON(http.StatusBadRequest, gin.H{"error": "query param 'project' is required"})
		return
	}

	identity := middlewares.GetIdentity(ctx)
	if !h.auth.Authorize(identity, project, auth.ActionRead) {
		ctx.PureJSON(http.StatusForbidden, gin.H{
			"error": fmt.Sprintf("token not authorized for project %q", project),
		})
		return
	}

	idx, err := h.registry.Tree(project)
	if err != nil {
		ctx.PureJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	entries := make([]*tree.Entry, 0)
	for e := range idx.List(plan.NormalizePath(prefix)) {
		entries = append(entries, e)
	}

	ctx.PureJSON(http.StatusOK, gin.H{
		"project": project,
		"prefix":  prefix,
		"entries": entries,
	})
}

// lookupIndex resolves a directory root to its index.* entry. redirect is
// true when the request path lacks the trailing slash. Resolved paths are
// cached so repeat hits skip the prefix scan.
func (h *FilesHandler) lookupIndex(idx *tree.Index, project, rawPath, path string) (*tree.Entry, bool) {
	redirect := path != "" && !strings.HasSuffix(rawPath, "/")

	key := project + "\x00" + path
	if cached, ok := h.indexPaths.Get(key); ok {
		if e, err := idx.Get(cached); err == nil {
			return e, redirect
		}
		h.indexPaths.Remove(key)
	}

	prefix := ""
	if path != "" {
		prefix = path + "/"
	}
	for e := range idx.List(prefix + "index.") {
		if !strings.Contains(strings.TrimPrefix(e.Path, prefix), "/") {
			h.indexPaths.Add(key, e.Path)
			return e, redirect
		}
	}
	return nil, false
}

func etagMatches(header, digest string) bool {
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		tag = strings.TrimPrefix(tag, "W/")
		tag = strings.Trim(tag, `"`)
		if tag == digest {
			return true
		}
	}
	return false
}
