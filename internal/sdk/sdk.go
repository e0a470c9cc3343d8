package sdk

import (
	"fmt"
	"runtime"
	"time"

	"github.com/imroc/req/v3"
	"github.com/shelf-sh/shelf/internal/version"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderShelfVersion  = "X-Shelf-Version"
)

var UserAgent = fmt.Sprintf("Shelf/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH)

// Client is the typed API client for a shelf server.
type Client struct {
	client  *req.Client
	baseURL string

	Projects *ProjectAPI
	Sync     *SyncAPI
	Files    *FilesAPI
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoServerURL
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1*time.Second).
		SetUserAgent(UserAgent).
		SetCommonHeader(HeaderShelfVersion, version.Version).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	c := &Client{
		client:  client,
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Projects = newProjectAPI(client)
	c.Sync = newSyncAPI(client)
	c.Files = newFilesAPI(client)
	return c, nil
}

type Option func(*Client)

// WithToken sets the bearer token used for authenticated endpoints.
func WithToken(token string) Option {
	return func(c *Client) {
		c.client.SetCommonBearerAuthToken(token)
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Close() {
	c.client.GetClient().CloseIdleConnections()
}
