package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	accountsdomain "github.com/numericalz/practicehub/internal/accounts/domain"
	"github.com/numericalz/practicehub/internal/authorization"
	bulkdomain "github.com/numericalz/practicehub/internal/bulk/domain"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/companieshouse"
	"github.com/numericalz/practicehub/internal/dashboard"
	"github.com/numericalz/practicehub/internal/deadline"
	userdomain "github.com/numericalz/practicehub/internal/user/domain"
	vatdomain "github.com/numericalz/practicehub/internal/vatquarter/domain"
	"github.com/numericalz/practicehub/internal/workflow"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   "request",
					Code:    err.Error(),
					Message: err.Error(),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, companieshouse.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "registry rate limit reached",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, companieshouse.ErrNotConfigured),
		errors.Is(err, companieshouse.ErrUnauthorized):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, workflow.ErrInvalidStage),
		errors.Is(err, deadline.ErrDeadlineUnresolvable),
		errors.Is(err, deadline.ErrInvalidQuarterGroup):
		return true
	case isClientValidationError(err),
		isVATQuarterValidationError(err),
		isAccountsValidationError(err),
		isBulkValidationError(err),
		isUserValidationError(err),
		isActivityValidationError(err):
		return true
	case errors.Is(err, dashboard.ErrInvalidID),
		errors.Is(err, companieshouse.ErrNoCompanyNumber):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, vatdomain.ErrQuarterExists),
		errors.Is(err, accountsdomain.ErrWorkflowExists),
		errors.Is(err, clientdomain.ErrCompanyNumberTaken),
		errors.Is(err, userdomain.ErrEmailTaken),
		errors.Is(err, companieshouse.ErrSweepInProgress):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, clientdomain.ErrClientNotFound),
		errors.Is(err, vatdomain.ErrClientNotFound),
		errors.Is(err, accountsdomain.ErrClientNotFound),
		errors.Is(err, vatdomain.ErrQuarterNotFound),
		errors.Is(err, accountsdomain.ErrWorkflowNotFound),
		errors.Is(err, bulkdomain.ErrJobNotFound),
		errors.Is(err, userdomain.ErrUserNotFound),
		errors.Is(err, companieshouse.ErrCompanyNotFound),
		errors.Is(err, workflow.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog buckets handler errors for the request log.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", payload.Type
	case status >= http.StatusBadRequest:
		return "client_error", payload.Type
	default:
		return "none", payload.Type
	}
}
