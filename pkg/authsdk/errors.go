package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/arvicollection/authcore/pkg/httpx"
)

// ErrNotReady is returned by GetReadiness when the service answers but a
// dependency is down.
var ErrNotReady = errors.New("authsdk: service not ready")

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Code)
}

// Is makes a 503 match ErrNotReady.
func (e *APIError) Is(target error) bool {
	return target == ErrNotReady && e.StatusCode == http.StatusServiceUnavailable
}

// parseErrorResponse builds an APIError from a response body, which may or
// may not be an httpx.Error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}

	var e httpx.Error
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		apiErr.Code = e.Error
		apiErr.Message = e.Message
	}
	return apiErr
}
