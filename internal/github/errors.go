package github

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoToken indicates no GitHub token could be resolved from any source.
var ErrNoToken = errors.New("no GitHub token configured (set GITHUB_TOKEN or run `aurelis auth login`)")

// APIError is a non-200 response from the inference endpoint.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Type       string `json:"type,omitempty"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("github models: %s (%d %s)", e.Message, e.StatusCode, e.Type)
	}
	return fmt.Sprintf("github models: %s (%d)", e.Message, e.StatusCode)
}

// Retryable reports whether the request may succeed on retry.
func (e *APIError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusRequestTimeout,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return e.StatusCode >= 500
}

// IsAuthError reports whether err is an authentication failure (401/403).
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return errors.Is(err, ErrNoToken)
}

// IsRateLimited reports whether err is a 429 from the endpoint.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is worth retrying on the same model.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	// Transport-level failures (connection reset, DNS) are retryable.
	return err != nil && !errors.Is(err, ErrNoToken)
}
