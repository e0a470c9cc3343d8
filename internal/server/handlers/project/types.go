package project

import (
	"github.com/shelf-sh/shelf/internal/server/auth"
	"github.com/shelf-sh/shelf/internal/server/registry"
)

type CreateRequest struct {
	Name string `json:"name" binding:"required"`
}

type ListResponse struct {
	Projects []*registry.Project `json:"projects"`
}

type TokenRequest struct {
	Project string `json:"project" binding:"required"`
	Label   string `json:"label" binding:"required"`
}

type TokenResponse struct {
	// Token is the signed bearer token, shown once.
	Token string          `json:"token"`
	Info  *auth.TokenInfo `json:"info"`
}
