package sdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/imroc/req/v3"
)

const v1FilesList = "/api/v1/files/list"

// FilesAPI reads published content back.
type FilesAPI struct {
	client *req.Client
}

func newFilesAPI(client *req.Client) *FilesAPI {
	return &FilesAPI{client: client}
}

func (f *FilesAPI) List(ctx context.Context, project, prefix string) (apiResp *FileListResponse, err error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("project", project).
		SetQueryParam("prefix", prefix).
		SetSuccessResult(&apiResp).
		Get(v1FilesList)

	if err := handleAPIError(resp, err, "files list"); err != nil {
		return nil, err
	}
	return apiResp, nil
}

// Fetch downloads one served file. The caller owns the returned reader.
// etag, when non-empty, is sent as If-None-Match; a 304 returns a nil
// reader with notModified true.
func (f *FilesAPI) Fetch(ctx context.Context, project, path, etag string) (body io.ReadCloser, respETag string, notModified bool, err error) {
	r := f.client.R().
		SetContext(ctx).
		DisableAutoReadResponse()
	if etag != "" {
		r.SetHeader("If-None-Match", fmt.Sprintf("%q", etag))
	}

	resp, err := r.Get("/files/" + url.PathEscape(project) + "/" + escapePath(path))
	if err != nil {
		return nil, "", false, fmt.Errorf("http request error: files fetch %w", err)
	}

	switch resp.StatusCode {
	case http.StatusNotModified:
		resp.Body.Close()
		return nil, etag, true, nil
	case http.StatusOK:
		return resp.Body, trimETag(resp.GetHeader("ETag")), false, nil
	default:
		defer resp.Body.Close()
		return nil, "", false, fetchError(resp)
	}
}

func fetchError(resp *req.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("files fetch %w", ErrNotFound)
	}
	return fmt.Errorf("files fetch: api error: %s", resp.Status)
}

func trimETag(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

func escapePath(path string) string {
	u := url.URL{Path: path}
	return u.EscapedPath()
}
