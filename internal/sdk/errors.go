package sdk

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL = errors.New("sdk: server url missing")
	ErrNoToken     = errors.New("sdk: api token missing")
	ErrNotFound    = errors.New("sdk: not found")
)

const (
	CodeInvalidRequest = "E_INVALID_REQUEST"
	CodeAccessDenied   = "E_ACCESS_DENIED"
	CodeNotFound       = "E_NOT_FOUND"
	CodeConflict       = "E_CONFLICT"
	CodeInternalError  = "E_INTERNAL_ERROR"
	CodeUnknownError   = "E_UNKNOWN_ERR"
)

// APIError is the error body returned by the shelf server.
type APIError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error: %s", e.Message)
	}
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return CodeAccessDenied
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusInternalServerError:
		return CodeInternalError
	default:
		return CodeUnknownError
	}
}

// handleAPIError folds transport errors and API error bodies into one error.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok {
			if apiErr.Code == "" {
				apiErr.Code = codeForStatus(resp.StatusCode)
			}
			if resp.StatusCode == http.StatusNotFound {
				return fmt.Errorf("%s %w: %w", operation, ErrNotFound, apiErr)
			}
			return fmt.Errorf("%s %w", operation, apiErr)
		}
		return fmt.Errorf("api error: %s %s", operation, resp.Status)
	}

	return nil
}
