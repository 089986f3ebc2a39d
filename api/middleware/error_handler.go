// api/middleware/error_handler.go
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10" // Import validator for binding errors

	"github.com/Annany2002/nebula-insights/internal/auth" // Import internal auth errors
	"github.com/Annany2002/nebula-insights/internal/query"
	"github.com/Annany2002/nebula-insights/internal/rbac"
	"github.com/Annany2002/nebula-insights/internal/storage" // Import internal storage errors
	"github.com/Annany2002/nebula-insights/internal/template"
	"github.com/Annany2002/nebula-insights/internal/upload"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeAccountInactive         = "ACCOUNT_INACTIVE"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeInsufficientRole        = "INSUFFICIENT_ROLE"
	CodeAuthError               = "AUTH_ERROR"
	CodeValidation              = "VALIDATION_ERROR"
	CodeNotFound                = "NOT_FOUND"
	CodeConflict                = "CONFLICT"
	CodeRateLimited             = "RATE_LIMITED"
	CodeInternal                = "INTERNAL_SERVER_ERROR"
)

// Errors handlers attach with c.Error when no domain sentinel applies.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthorized    = errors.New("authentication required")
	ErrAccountInactive = errors.New("user account is inactive")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrFileTooLarge    = errors.New("uploaded file is too large")
)

type errorMapping struct {
	target error
	status int
	code   string
	// generic replaces err.Error() in the response when set.
	generic string
}

var errorMappings = []errorMapping{
	// Structural problems with the request or its file
	{template.ErrTemplateMissing, http.StatusNotFound, "TEMPLATE_MISSING", ""},
	{template.ErrWorkbookUnreadable, http.StatusBadRequest, "INVALID_FILE", ""},
	{upload.ErrHeaderMismatch, http.StatusBadRequest, "HEADER_MISMATCH", ""},
	{upload.ErrAnnotatedReport, http.StatusBadRequest, "ANNOTATED_REPORT", ""},
	{ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", ""},
	{query.ErrNoAggregation, http.StatusBadRequest, "NO_AGGREGATION", ""},
	{query.ErrInvalidAggregation, http.StatusBadRequest, "INVALID_AGGREGATION", ""},
	{query.ErrUnsupportedOperator, http.StatusBadRequest, "UNSUPPORTED_OPERATOR", ""},
	{query.ErrUnknownColumn, http.StatusBadRequest, "UNKNOWN_COLUMN", ""},
	{storage.ErrNoValues, http.StatusBadRequest, CodeValidation, ""},
	{storage.ErrRoleInactive, http.StatusBadRequest, "ROLE_INACTIVE", ""},
	{storage.ErrPermissionNotFound, http.StatusBadRequest, "INVALID_PERMISSION", ""},
	{ErrBadRequest, http.StatusBadRequest, CodeValidation, ""},

	// Not found
	{storage.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", ""},
	{storage.ErrRoleNotFound, http.StatusNotFound, "ROLE_NOT_FOUND", ""},
	{storage.ErrTableNotFound, http.StatusNotFound, "DATA_TABLE_MISSING", ""},
	{upload.ErrReportNotFound, http.StatusNotFound, "REPORT_NOT_FOUND", ""},
	{ErrNotFound, http.StatusNotFound, CodeNotFound, ""},

	// Conflicts
	{storage.ErrRoleExists, http.StatusConflict, "ROLE_EXISTS", ""},
	{storage.ErrRoleInUse, http.StatusConflict, "ROLE_IN_USE", ""},
	{storage.ErrConstraintViolation, http.StatusConflict, CodeConflict, ""},

	// Authentication and authorization
	{auth.ErrTokenExpired, http.StatusUnauthorized, CodeUnauthorized, "Authentication token has expired."},
	{auth.ErrTokenMalformed, http.StatusUnauthorized, CodeUnauthorized, "Invalid or malformed authentication token."},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, CodeUnauthorized, "Invalid or malformed authentication token."},
	{auth.ErrTokenClaimsInvalid, http.StatusUnauthorized, CodeUnauthorized, "Invalid or malformed authentication token."},
	{auth.ErrUnexpectedSigningMethod, http.StatusUnauthorized, CodeUnauthorized, "Invalid or malformed authentication token."},
	{rbac.ErrInvalidPrincipal, http.StatusUnauthorized, CodeUnauthorized, ""},
	{ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized, ""},
	{ErrAccountInactive, http.StatusForbidden, CodeAccountInactive, "User account is inactive"},
	{ErrForbidden, http.StatusForbidden, CodeInsufficientPermissions, ""},

	// Server-side template problems are reported, not hidden
	{template.ErrTemplateMalformed, http.StatusInternalServerError, "TEMPLATE_MALFORMED", ""},
}

// ErrorHandler creates a Gin middleware for centralized error handling.
// Responses carry {error, code}; unmapped errors become a 500 whose details are only logged.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// We only handle the last error for the response.
		err := c.Errors.Last().Err
		if c.Writer.Written() {
			customLog.Debugf("[ErrorHandler] Response already written for error: %v", err)
			return
		}

		status, body := describeError(err)
		if status == http.StatusInternalServerError {
			customLog.Errorf("[ErrorHandler] %s %s: %v (%T)", c.Request.Method, c.Request.URL.Path, err, err)
		} else {
			customLog.Warnf("[ErrorHandler] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		}
		c.AbortWithStatusJSON(status, body)
	}
}

func describeError(err error) (int, gin.H) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make([]gin.H, 0, len(validationErrs))
		for _, fe := range validationErrs {
			details = append(details, gin.H{"field": fe.Field(), "rule": fe.Tag()})
		}
		return http.StatusBadRequest, gin.H{
			"error":   "Validation failed. Please check your input.",
			"code":    CodeValidation,
			"details": details,
		}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.generic
			if msg == "" {
				msg = err.Error()
			}
			return m.status, gin.H{"error": msg, "code": m.code}
		}
	}

	return http.StatusInternalServerError, gin.H{
		"error": "An unexpected internal server error occurred.",
		"code":  CodeInternal,
	}
}
