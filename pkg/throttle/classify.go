package throttle

import (
	"errors"
	"net/http"

	"github.com/ytscribe/ytscribe/pkg/utils"
)

// StatusCoder is implemented by provider errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Providers signal throttling inconsistently, so classification matches an
// explicit status-code set and a message-substring set.
var (
	rateLimitStatusCodes = map[int]struct{}{
		http.StatusTooManyRequests: {},
	}

	rateLimitSubstrings = []string{
		"429",
		"too many requests",
		"rate limit",
		"captcha",
	}
)

// IsRateLimited reports whether err represents a provider-side throttling
// failure. It is a pure function of the error chain.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var coder StatusCoder
	if errors.As(err, &coder) {
		if _, ok := rateLimitStatusCodes[coder.StatusCode()]; ok {
			return true
		}
	}

	return utils.ContainsAnyErrorSubstring(err, rateLimitSubstrings)
}
