package llm

import (
	"fmt"
	"net/http"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
)

// statusError classifies a non-200 provider response for the retry loop.
// 429 waits out the rate limit, 5xx retries, anything else fails fast.
func statusError(provider string, status int, body []byte) error {
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, string(body))
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case status >= http.StatusInternalServerError:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return &common.RetryableError{Err: err, Retryable: false}
	}
}
