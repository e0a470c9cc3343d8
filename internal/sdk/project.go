package sdk

import (
	"context"

	"github.com/imroc/req/v3"
)

const (
	v1Projects = "/api/v1/projects"
	v1Tokens   = "/api/v1/tokens"
)

// ProjectAPI covers project and token administration.
type ProjectAPI struct {
	client *req.Client
}

func newProjectAPI(client *req.Client) *ProjectAPI {
	return &ProjectAPI{client: client}
}

func (p *ProjectAPI) Create(ctx context.Context, name string) (project *Project, err error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"name": name}).
		SetSuccessResult(&project).
		Post(v1Projects)

	if err := handleAPIError(resp, err, "project create"); err != nil {
		return nil, err
	}
	return project, nil
}

func (p *ProjectAPI) List(ctx context.Context) (apiResp *ProjectListResponse, err error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetSuccessResult(&apiResp).
		Get(v1Projects)

	if err := handleAPIError(resp, err, "project list"); err != nil {
		return nil, err
	}
	return apiResp, nil
}

func (p *ProjectAPI) CreateToken(ctx context.Context, project, label string) (apiResp *TokenResponse, err error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"project": project, "label": label}).
		SetSuccessResult(&apiResp).
		Post(v1Tokens)

	if err := handleAPIError(resp, err, "token create"); err != nil {
		return nil, err
	}
	return apiResp, nil
}

func (p *ProjectAPI) ListTokens(ctx context.Context, project string) (apiResp *TokenListResponse, err error) {
	r := p.client.R().
		SetContext(ctx).
		SetSuccessResult(&apiResp)
	if project != "" {
		r.SetQueryParam("project", project)
	}
	resp, err := r.Get(v1Tokens)

	if err := handleAPIError(resp, err, "token list"); err != nil {
		return nil, err
	}
	return apiResp, nil
}

func (p *ProjectAPI) RevokeToken(ctx context.Context, id string) error {
	resp, err := p.client.R().
		SetContext(ctx).
		Delete(v1Tokens + "/" + id)

	return handleAPIError(resp, err, "token revoke")
}
