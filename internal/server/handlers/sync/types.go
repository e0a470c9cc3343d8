package sync

import (
	"github.com/shelf-sh/shelf/internal/plan"
	"github.com/shelf-sh/shelf/internal/server/tree"
)

type ManifestResponse struct {
	Project  string        `json:"project"`
	Prefix   string        `json:"prefix"`
	Manifest plan.Manifest `json:"manifest"`
}

type PlanRequest struct {
	Project  string        `json:"project" binding:"required"`
	Prefix   string        `json:"prefix"`
	Manifest plan.Manifest `json:"manifest"`
}

type PlanResponse struct {
	Project string     `json:"project"`
	Prefix  string     `json:"prefix"`
	Plan    *plan.Plan `json:"plan"`
}

type UploadRequest struct {
	Project string `form:"project" binding:"required"`
	Path    string `form:"path" binding:"required"`
}

type UploadResponse struct {
	Entry *tree.Entry `json:"entry"`
}

type CommitRequest struct {
	Project string   `json:"project" binding:"required"`
	Deletes []string `json:"deletes" binding:"required"`
}

type CommitResponse struct {
	Deleted []string       `json:"deleted"`
	Errors  []*DeleteError `json:"errors,omitempty"`
}

type DeleteError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}
