// Package httputil provides shared HTTP response helpers.
package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coesco/opsapi/internal/models"
)

// Error codes carried in the JSON error envelope.
const (
	CodeInvalidRequest  = "invalid_request"
	CodeValidationError = "validation_error"
	CodeNotFound        = "not_found"
	CodeNoChanges       = "no_changes"
	CodeConflict        = "conflict"
	CodeUnauthorized    = "unauthorized"
	CodeForbidden       = "forbidden"
	CodeRateLimited     = "rate_limited"
	CodeCandidateLimit  = "candidate_limit"
	CodeInternalError   = "internal_error"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// RequestID returns the id set by the request ID middleware, if any.
func RequestID(c *gin.Context) string {
	if rid, exists := c.Get("request_id"); exists {
		if s, ok := rid.(string); ok {
			return s
		}
	}

	return ""
}

// RespondError writes a standardized JSON error response and aborts the request.
func RespondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: RequestID(c),
	})
}

// Classify maps a gateway error to its HTTP status and error code.
// Unrecognized errors are internal; their message is not exposed.
func Classify(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, err.Error()
	case errors.Is(err, models.ErrUnknownModel):
		return http.StatusNotFound, CodeNotFound, err.Error()
	case errors.Is(err, models.ErrNoChanges):
		return http.StatusConflict, CodeNoChanges, err.Error()
	case errors.Is(err, models.ErrDuplicateKey):
		return http.StatusConflict, CodeConflict, err.Error()
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, CodeValidationError, err.Error()
	case errors.Is(err, models.ErrCandidateLimit):
		return http.StatusUnprocessableEntity, CodeCandidateLimit, err.Error()
	case errors.Is(err, models.ErrInvalidQuery),
		errors.Is(err, models.ErrUnknownField),
		errors.Is(err, models.ErrSearchFieldsRequired),
		errors.Is(err, models.ErrModelNameRequired):
		return http.StatusBadRequest, CodeInvalidRequest, err.Error()
	default:
		return http.StatusInternalServerError, CodeInternalError, "internal server error"
	}
}
