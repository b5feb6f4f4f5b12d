package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/workforce/internal/audit/domain"
	bulkpayrolldomain "github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/guard"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/liveevents"
	employeedomain "github.com/smallbiznis/workforce/internal/employee/domain"
	"github.com/smallbiznis/workforce/internal/payroll/calculator"
	payrolldomain "github.com/smallbiznis/workforce/internal/payroll/domain"
	workinghoursdomain "github.com/smallbiznis/workforce/internal/workinghours/domain"
	"gorm.io/gorm"
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
	Code    string            `json:"code,omitempty"`
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
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
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
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
			Code:    conflictCode(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, liveevents.ErrHubUnavailable):
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

// classifyErrorForLog reports the response type and code an error maps to.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if payload.Code != "" {
		return payload.Type, payload.Code
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
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
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isEmployeeValidationError(err),
		isWorkingHoursValidationError(err),
		isPayrollValidationError(err),
		isBulkPayrollValidationError(err),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isEmployeeValidationError(err error) bool {
	switch {
	case errors.Is(err, employeedomain.ErrInvalidName),
		errors.Is(err, employeedomain.ErrInvalidEmail),
		errors.Is(err, employeedomain.ErrInvalidRole),
		errors.Is(err, employeedomain.ErrInvalidEmploymentType),
		errors.Is(err, employeedomain.ErrInvalidHourlyRate),
		errors.Is(err, employeedomain.ErrInvalidID),
		errors.Is(err, employeedomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isWorkingHoursValidationError(err error) bool {
	switch {
	case errors.Is(err, workinghoursdomain.ErrInvalidID),
		errors.Is(err, workinghoursdomain.ErrInvalidProfile),
		errors.Is(err, workinghoursdomain.ErrInvalidDate),
		errors.Is(err, workinghoursdomain.ErrInvalidHours),
		errors.Is(err, workinghoursdomain.ErrInvalidStatus),
		errors.Is(err, workinghoursdomain.ErrInvalidRange),
		errors.Is(err, workinghoursdomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isPayrollValidationError(err error) bool {
	switch {
	case errors.Is(err, payrolldomain.ErrInvalidID),
		errors.Is(err, payrolldomain.ErrInvalidStatus),
		errors.Is(err, payrolldomain.ErrInvalidPageToken),
		errors.Is(err, payrolldomain.ErrInvalidAmounts),
		errors.Is(err, payrolldomain.ErrInvalidPeriod),
		errors.Is(err, calculator.ErrNegativeRate),
		errors.Is(err, calculator.ErrNegativeHours),
		errors.Is(err, calculator.ErrDeductionRate):
		return true
	default:
		return false
	}
}

func isBulkPayrollValidationError(err error) bool {
	switch {
	case errors.Is(err, bulkpayrolldomain.ErrInvalidName),
		errors.Is(err, bulkpayrolldomain.ErrInvalidPayPeriod),
		errors.Is(err, bulkpayrolldomain.ErrEmptyEmployeeSelection),
		errors.Is(err, bulkpayrolldomain.ErrInvalidEmployeeID),
		errors.Is(err, bulkpayrolldomain.ErrInvalidID),
		errors.Is(err, bulkpayrolldomain.ErrInvalidStatus),
		errors.Is(err, bulkpayrolldomain.ErrInvalidPageToken),
		errors.Is(err, bulkpayrolldomain.ErrNoItems),
		errors.Is(err, liveevents.ErrInvalidBatchID):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, employeedomain.ErrDuplicateEmail),
		errors.Is(err, employeedomain.ErrInUse),
		errors.Is(err, workinghoursdomain.ErrNotPending),
		errors.Is(err, workinghoursdomain.ErrAlreadyPaid),
		errors.Is(err, payrolldomain.ErrInvalidTransition),
		errors.Is(err, bulkpayrolldomain.ErrBatchNotStartable),
		errors.Is(err, bulkpayrolldomain.ErrBatchNotPausable),
		errors.Is(err, bulkpayrolldomain.ErrBatchNotResumable),
		errors.Is(err, bulkpayrolldomain.ErrBatchNotRecoverable),
		errors.Is(err, bulkpayrolldomain.ErrLeaseLost),
		errors.Is(err, guard.ErrInvalidTransition),
		errors.Is(err, guard.ErrLeaseActive):
		return true
	default:
		return false
	}
}

func conflictCode(err error) string {
	for _, candidate := range []error{
		employeedomain.ErrDuplicateEmail,
		employeedomain.ErrInUse,
		workinghoursdomain.ErrNotPending,
		workinghoursdomain.ErrAlreadyPaid,
		payrolldomain.ErrInvalidTransition,
		bulkpayrolldomain.ErrBatchNotStartable,
		bulkpayrolldomain.ErrBatchNotPausable,
		bulkpayrolldomain.ErrBatchNotResumable,
		bulkpayrolldomain.ErrBatchNotRecoverable,
		bulkpayrolldomain.ErrLeaseLost,
		guard.ErrInvalidTransition,
		guard.ErrLeaseActive,
	} {
		if errors.Is(err, candidate) {
			return candidate.Error()
		}
	}
	return "conflict"
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, employeedomain.ErrNotFound),
		errors.Is(err, workinghoursdomain.ErrNotFound),
		errors.Is(err, payrolldomain.ErrNotFound),
		errors.Is(err, bulkpayrolldomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	switch code {
	case "empty_employee_selection":
		return "employee_ids"
	case "no_items":
		return "items"
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "empty_employee_selection":
		return "select at least one employee"
	case "no_items":
		return "batch has no items"
	default:
		return "invalid value"
	}
}
