package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/dashport/internal/bundle"
	"github.com/persistorai/dashport/internal/httputil"
	"github.com/persistorai/dashport/internal/models"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeInternalError   = "internal_error"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodePayloadTooLarge = "payload_too_large"
	ErrCodeInvalidBundle   = "invalid_bundle"
	ErrCodeConfigError     = "config_error"
	ErrCodeStructuralError = "structural_error"
	ErrCodeTimeout         = "timeout"
)

// respondError writes a standardized JSON error response, pulling the request
// ID from the Gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	httputil.RespondError(c, status, code, message)
}

// respondImportError maps a bundle loading or import failure to a response.
// Client errors carry the error text; anything else is logged and hidden.
func respondImportError(c *gin.Context, log *logrus.Logger, err error) {
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &maxBytes), errors.Is(err, bundle.ErrFileTooLarge):
		respondError(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, err.Error())
	case errors.Is(err, models.ErrConfiguration):
		respondError(c, http.StatusUnprocessableEntity, ErrCodeConfigError, err.Error())
	case errors.Is(err, models.ErrStructuralRef):
		respondError(c, http.StatusUnprocessableEntity, ErrCodeStructuralError, err.Error())
	case isInvalidBundle(err):
		respondError(c, http.StatusUnprocessableEntity, ErrCodeInvalidBundle, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusGatewayTimeout, ErrCodeTimeout, "import timed out")
	default:
		log.WithError(err).Error("importing bundle")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	}
}

func isInvalidBundle(err error) bool {
	for _, target := range []error{
		bundle.ErrNotArchive,
		bundle.ErrMissingMetadata,
		bundle.ErrWrongType,
		models.ErrMissingUUID,
		models.ErrMissingField,
		models.ErrMalformed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
