package sdk

import (
	"context"
	"io"

	"github.com/imroc/req/v3"
	"github.com/shelf-sh/shelf/internal/plan"
)

const (
	v1SyncManifest = "/api/v1/sync/manifest"
	v1SyncPlan     = "/api/v1/sync/plan"
	v1SyncBlob     = "/api/v1/sync/blob"
	v1SyncCommit   = "/api/v1/sync/commit"
)

// SyncAPI drives one sync session against the server: fetch the remote
// manifest, ask for a plan, stream uploads, commit deletes.
type SyncAPI struct {
	client *req.Client
}

func newSyncAPI(client *req.Client) *SyncAPI {
	return &SyncAPI{client: client}
}

func (s *SyncAPI) Manifest(ctx context.Context, project, prefix string) (apiResp *ManifestResponse, err error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("project", project).
		SetQueryParam("prefix", prefix).
		SetSuccessResult(&apiResp).
		Get(v1SyncManifest)

	if err := handleAPIError(resp, err, "sync manifest"); err != nil {
		return nil, err
	}
	return apiResp, nil
}

func (s *SyncAPI) Plan(ctx context.Context, project, prefix string, local plan.Manifest) (apiResp *PlanResponse, err error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"project":  project,
			"prefix":   prefix,
			"manifest": local,
		}).
		SetSuccessResult(&apiResp).
		Post(v1SyncPlan)

	if err := handleAPIError(resp, err, "sync plan"); err != nil {
		return nil, err
	}
	return apiResp, nil
}

// Upload streams body as the new content for project/path. The server
// fingerprints while receiving, so no digest travels with the request.
func (s *SyncAPI) Upload(ctx context.Context, project, path string, body io.Reader) (apiResp *UploadResponse, err error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("project", project).
		SetQueryParam("path", path).
		SetContentType("application/octet-stream").
		SetBody(body).
		SetRetryCount(0).
		SetSuccessResult(&apiResp).
		Put(v1SyncBlob)

	if err := handleAPIError(resp, err, "sync upload"); err != nil {
		return nil, err
	}
	return apiResp, nil
}

func (s *SyncAPI) Commit(ctx context.Context, project string, deletes []string) (apiResp *CommitResponse, err error) {
	if deletes == nil {
		deletes = []string{}
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"project": project,
			"deletes": deletes,
		}).
		SetSuccessResult(&apiResp).
		Post(v1SyncCommit)

	if err := handleAPIError(resp, err, "sync commit"); err != nil {
		return nil, err
	}
	return apiResp, nil
}
