package sdk

import (
	"time"

	"github.com/shelf-sh/shelf/internal/plan"
)

type Project struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type ProjectListResponse struct {
	Projects []*Project `json:"projects"`
}

type TokenInfo struct {
	ID        string    `json:"id"`
	Project   string    `json:"project"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
}

type TokenResponse struct {
	Token string     `json:"token"`
	Info  *TokenInfo `json:"info"`
}

type TokenListResponse struct {
	Tokens []*TokenInfo `json:"tokens"`
}

// Entry mirrors one indexed file as served by the API.
type Entry struct {
	Project     string    `json:"project"`
	Path        string    `json:"path"`
	Digest      string    `json:"digest"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
	ContentType string    `json:"contentType"`
}

type ManifestResponse struct {
	Project  string        `json:"project"`
	Prefix   string        `json:"prefix"`
	Manifest plan.Manifest `json:"manifest"`
}

type PlanResponse struct {
	Project string     `json:"project"`
	Prefix  string     `json:"prefix"`
	Plan    *plan.Plan `json:"plan"`
}

type UploadResponse struct {
	Entry *Entry `json:"entry"`
}

type CommitResponse struct {
	Deleted []string       `json:"deleted"`
	Errors  []*DeleteError `json:"errors,omitempty"`
}

type DeleteError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type FileListResponse struct {
	Project string   `json:"project"`
	Prefix  string   `json:"prefix"`
	Entries []*Entry `json:"entries"`
}
