package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/security"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/transport/http/middleware"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// domainErrorCases covers errors shared by every QC endpoint. Order matters:
// the first match wins.
var domainErrorCases = []ErrorCase{
	{Err: usecase.ErrNotAuthenticated, Status: http.StatusUnauthorized, Message: "authentication required"},
	{Err: domain.ErrAccessDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
	{Err: domain.ErrInvalidTransition, Status: http.StatusConflict, Message: "already decided"},
	{Err: domain.ErrReasonRequired, Status: http.StatusBadRequest, Message: "a reason is required"},
	{Err: domain.ErrUnknownRole, Status: http.StatusBadRequest, Message: "unknown role"},
	{Err: domain.ErrInvalidUsername, Status: http.StatusBadRequest, Message: domain.ErrInvalidUsername.Error()},
	{Err: domain.ErrReservedUsername, Status: http.StatusBadRequest, Message: domain.ErrReservedUsername.Error()},
	{Err: usecase.ErrUsernameTaken, Status: http.StatusConflict, Message: "username already taken"},
	{Err: usecase.ErrUserModified, Status: http.StatusConflict, Message: "user changed, reload and retry"},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
	{Err: usecase.ErrOrderNotFound, Status: http.StatusNotFound, Message: "order not found"},
	{Err: usecase.ErrPhotoNotFound, Status: http.StatusNotFound, Message: "photo not found"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// respondDomainError writes the response for errors returned by the QC use cases.
func respondDomainError(c *gin.Context, err error, fallbackMessage string) {
	var transition *domain.TransitionError
	if errors.As(err, &transition) {
		c.JSON(http.StatusConflict, NewErrorResponse(c, transition.Error()))
		return
	}

	var incomplete *usecase.IncompletePhotoSetError
	if errors.As(err, &incomplete) {
		c.JSON(http.StatusUnprocessableEntity, IncompleteOrderResponse{
			Error:   "photo set incomplete",
			TraceID: middleware.GetTraceID(c),
			Report:  newQualityReportResponse(incomplete.Report),
		})
		return
	}

	var policy *security.PasswordValidationError
	if errors.As(err, &policy) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, policy.Message))
		return
	}

	RespondWithMappedError(c, err, domainErrorCases, http.StatusInternalServerError, fallbackMessage)
}
