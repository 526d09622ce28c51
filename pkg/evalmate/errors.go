package evalmate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrSessionExpired marks a chat call whose session no longer exists
// server-side (restart or expiry). Callers should offer a fresh session
// instead of retrying.
var ErrSessionExpired = errors.New("chat session not found or expired")

// ErrResultNotAvailable is returned when no stored evaluation exists for a
// submission.
var ErrResultNotAvailable = errors.New("evaluation result not available")

// APIError is a non-2xx response from the backend, carrying the server's
// detail message when one was provided.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("evalmate api: %s (status %d)", e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("evalmate api: request failed (status %d)", e.StatusCode)
}

// decodeAPIError extracts the {"detail": ...} payload. Validation errors
// carry a structured detail; those fall back to the trimmed raw body.
func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Detail != "" {
		apiErr.Detail = payload.Detail
		return apiErr
	}

	detail := strings.TrimSpace(string(data))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	apiErr.Detail = detail
	return apiErr
}

// IsNotFound reports whether err is a 404 API response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
