package binance

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-200 response from Binance. Message carries the
// upstream msg field when the body had the {code,msg} shape, otherwise
// the raw response text.
type APIError struct {
	HTTPStatus int    `json:"http_status"`
	Code       int64  `json:"code"`
	Message    string `json:"msg"`
	// RetryAfter is the Retry-After header value in seconds, when the
	// upstream sent one on a 429/418.
	RetryAfter int `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("binance: code=%d msg=%s", e.Code, e.Message)
	}
	return fmt.Sprintf("binance: http %d: %s", e.HTTPStatus, e.Message)
}

// IsRateLimited reports whether err is an upstream 429 (or 418 ban).
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus == http.StatusTooManyRequests || apiErr.HTTPStatus == 418
	}
	return false
}

// RetryAfterSeconds returns the upstream backoff hint, 0 when absent.
func RetryAfterSeconds(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}
