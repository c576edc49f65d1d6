// Package handlers implements the HTTP endpoints of the query tracker:
// queries, accounts and the notification inbox. Handlers stay thin. They
// bind input, call a service and shape the result; every failure leaves
// through the ErrorResponse envelope.
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "submission_limit",
//	  "message": "You can only submit one query per day."
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-quetras-backend/internal/domain"
	"github.com/tbourn/go-quetras-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"not_found"`
	Message   string `json:"message" example:"query not found"`
	// Details lists the offending fields of a validation failure.
	Details []domain.FieldError `json:"details,omitempty"`
}

func fail(c *gin.Context, status int, code, msg string) {
	failDetails(c, status, code, msg, nil)
}

func failDetails(c *gin.Context, status int, code, msg string, details []domain.FieldError) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().Int("status", status).Str("code", code)
		if len(c.Errors) > 0 {
			ev = ev.Str("cause", c.Errors.Last().Error())
		}
		ev.Msg(msg)
	}
	rid := middleware.RequestIDFrom(c)
	if rid == "" {
		rid = c.Writer.Header().Get("X-Request-ID")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{RequestID: rid, Code: code, Message: msg, Details: details})
}

// Fail writes the envelope for callers outside this package (router fallbacks).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }

// actor returns the caller or writes 401. Routes sit behind RequireAuth, so
// the failure path only triggers on miswiring.
func actor(c *gin.Context) (domain.Actor, bool) {
	a, found := middleware.ActorFrom(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	}
	return a, found
}
