package sync

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shelf-sh/shelf/internal/server/auth"
	"github.com/shelf-sh/shelf/internal/server/middlewares"
	"github.com/shelf-sh/shelf/internal/server/registry"
	syncsvc "github.com/shelf-sh/shelf/internal/server/sync"
	"github.com/shelf-sh/shelf/internal/server/tree"
)

// SyncHandler decomposes a sync session over HTTP: manifest fetch, plan,
// one streamed upload per changed file, then a commit of the deletes.
// Order is preserved by the client driving puts before the commit call.
type SyncHandler struct {
	sync *syncsvc.Service
	auth *auth.AuthService
}

func New(syncSvc *syncsvc.Service, authSvc *auth.AuthService) *SyncHandler {
	return &SyncHandler{sync: syncSvc, auth: authSvc}
}

func (h *SyncHandler) Manifest(ctx *gin.Context) {
	project := ctx.Query("project")
	prefix := ctx.Query("prefix")
	if project == "" {
		ctx.PureJSON(http.StatusBadRequest, gin.H{"error": "query param 'project' is required"})
		return
	}
	if !h.authorized(ctx, project) {
		return
	}

	manifest, err := h.sync.Manifest(ctx.Request.Context(), project, prefix)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &ManifestResponse{
		Project:  project,
		Prefix:   prefix,
		Manifest: manifest,
	})
}

func (h *SyncHandler) Plan(ctx *gin.Context) {
	var req PlanRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.PureJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.authorized(ctx, req.Project) {
		return
	}

	p, err := h.sync.Plan(ctx.Request.Context(), req.Project, req.Prefix, req.Manifest)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &PlanResponse{
		Project: req.Project,
		Prefix:  req.Prefix,
		Plan:    p,
	})
}

// Upload streams one file's content into the store. The body is consumed
// as-is; the server fingerprints while spooling, so the client never
// computes anything the server must trust.
func (h *SyncHandler) Upload(ctx *gin.Context) {
	var req UploadRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.PureJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.authorized(ctx, req.Project) {
		return
	}

	entry, err := h.sync.Put(ctx.Request.Context(), req.Project, req.Path, ctx.Request.Body)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &UploadResponse{Entry: entry})
}

// Commit applies the delete half of a plan. Clients call it after all
// uploads succeeded, preserving the put-before-delete ordering for
// concurrent readers.
func (h *SyncHandler) Commit(ctx *gin.Context) {
	var req CommitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.PureJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.authorized(ctx, req.Project) {
		return
	}

	deleted := make([]string, 0, len(req.Deletes))
	var deleteErrors []*DeleteError
	for _, path := range req.Deletes {
		if err := h.sync.Delete(ctx.Request.Context(), req.Project, path); err != nil {
			ctx.Error(fmt.Errorf("delete %s: %w", path, err))
			deleteErrors = append(deleteErrors, &DeleteError{Path: path, Error: err.Error()})
			continue
		}
		deleted = append(deleted, path)
	}

	code := http.StatusOK
	if len(deleteErrors) > 0 && len(deleted) == 0 {
		code = http.StatusBadRequest
	} else if len(deleteErrors) > 0 {
		code = http.StatusMultiStatus
	}

	ctx.PureJSON(code, &CommitResponse{Deleted: deleted, Errors: deleteErrors})
}

func (h *SyncHandler) authorized(ctx *gin.Context, project string) bool {
	identity := middlewares.GetIdentity(ctx)
	if !h.auth.Authorize(identity, project, auth.ActionSync) {
		ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": fmt.Sprintf("token not authorized for project %q", project),
		})
		return false
	}
	return true
}

func (h *SyncHandler) writeError(ctx *gin.Context, err error) {
	ctx.Error(err)
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, tree.ErrNotFound):
		ctx.PureJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		ctx.PureJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
