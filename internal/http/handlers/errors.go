package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-quetras-backend/internal/services"
)

// Stable error codes. Clients branch on these, never on messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeSubmissionLimit  = "submission_limit"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// failErr maps a service error onto the HTTP taxonomy. Unknown errors are
// reported as 500 without leaking their text.
func failErr(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		failDetails(c, http.StatusBadRequest, ErrCodeBadRequest, "validation failed", ve.Fields)
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrQueryNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "query not found")
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrSubmissionLimit):
		fail(c, http.StatusTooManyRequests, ErrCodeSubmissionLimit, "You can only submit one query per day.")
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrEmailTaken):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrIDSpaceExhausted):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
