package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// APIError is a non-ok Bot API response.
type APIError struct {
	Method      string
	Code        int
	Description string
	// RetryAfter is set when the request was rate limited.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram %s: %d %s (retry after %s)", e.Method, e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// IsForbidden reports whether the recipient blocked the bot or cannot be messaged.
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden
}

// RateLimit reports whether err is a flood-control rejection and how long to wait.
func RateLimit(err error) (time.Duration, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return apiErr.RetryAfter, true
	}
	return 0, false
}

// IsRateLimited reports whether err is a flood-control rejection.
func IsRateLimited(err error) bool {
	_, limited := RateLimit(err)
	return limited
}
