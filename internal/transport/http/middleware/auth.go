package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// AccessChecker resolves the session user and evaluates a role policy.
type AccessChecker interface {
	CheckAccess(ctx context.Context) (domain.User, error)
}

// RequireAccess admits requests whose operator session satisfies checker's
// policy and stores the user for handlers.
func RequireAccess(checker AccessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := checker.CheckAccess(c.Request.Context())
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrNotAuthenticated):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "authentication required"))
			case errors.Is(err, domain.ErrAccessDenied):
				c.AbortWithStatusJSON(http.StatusForbidden,
					newErrorResponse(c, "insufficient permissions"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authorization failed"))
			}
			return
		}

		SetCurrentUser(c, user)
		c.Next()
	}
}
