package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/dashport/internal/httputil"
)

// Error codes written by the middleware chain.
const (
	codeUnauthorized    = "unauthorized"
	codeRateLimited     = "rate_limited"
	codePayloadTooLarge = "payload_too_large"
)

// retryAfterSeconds is advertised on 429 responses.
const retryAfterSeconds = "1"

func respondError(c *gin.Context, status int, code, message string) {
	if status == http.StatusTooManyRequests {
		c.Header("Retry-After", retryAfterSeconds)
	}

	httputil.RespondError(c, status, code, message)
}
