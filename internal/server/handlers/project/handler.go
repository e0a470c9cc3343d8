package project

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shelf-sh/shelf/internal/server/auth"
	"github.com/shelf-sh/shelf/internal/server/registry"
)

type ProjectHandler struct {
	registry *registry.Registry
	auth     *auth.AuthService
}

func New(reg *registry.Registry, authSvc *auth.AuthService) *ProjectHandler {
	return &ProjectHandler{registry: reg, auth: authSvc}
}

func (h *ProjectHandler) Create(ctx *gin.Context) {
	var req CreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.Error(fmt.Errorf("failed to bind json: %w", err))
		ctx.PureJSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	p, err := h.registry.Create(req.Name)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrExists):
			ctx.PureJSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, registry.ErrInvalidName):
			ctx.PureJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			ctx.Error(err)
			ctx.PureJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	ctx.PureJSON(http.StatusCreated, p)
}

func (h *ProjectHandler) List(ctx *gin.Context) {
	projects, err := h.registry.List()
	if err != nil {
		ctx.Error(err)
		ctx.PureJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.PureJSON(http.StatusOK, &ListResponse{Projects: projects})
}

func (h *ProjectHandler) CreateToken(ctx *gin.Context) {
	var req TokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.PureJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.registry.Get(req.Project); err != nil {
		ctx.PureJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	signed, info, err := h.auth.IssueToken(ctx.Request.Context(), req.Project, req.Label)
	if err != nil {
		ctx.Error(err)
		ctx.PureJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.PureJSON(http.StatusCreated, &TokenResponse{Token: signed, Info: info})
}

func (h *ProjectHandler) ListTokens(ctx *gin.Context) {
	project := ctx.Query("project")
	if project == "" {
		ctx.PureJSON(http.StatusBadRequest, gin.H{"error": "query param 'project' is required"})
		return
	}

	tokens, err := h.auth.ListTokens(ctx.Request.Context(), project)
	if err != nil {
		ctx.Error(err)
		ctx.PureJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.PureJSON(http.StatusOK, gin.H{"tokens": tokens})
}

func (h *ProjectHandler) RevokeToken(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := h.auth.RevokeToken(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			ctx.PureJSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		ctx.Error(err)
		ctx.PureJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.PureJSON(http.StatusOK, gin.H{"revoked": id})
}
