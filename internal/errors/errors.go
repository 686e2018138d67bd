package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds. Every domain error wraps exactly one of these.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

var (
	// ErrTaskNotFound is returned when a task does not exist or is not accessible to the requester.
	ErrTaskNotFound = fmt.Errorf("task %w", ErrNotFound)
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrCategoryNotFound is returned when a category does not exist.
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)

	// ErrPermissionDenied is returned when the requester's role lacks a permission.
	ErrPermissionDenied = fmt.Errorf("%w: insufficient permissions", ErrForbidden)
	// ErrLastAdmin is returned when an operation would leave no active admin.
	ErrLastAdmin = fmt.Errorf("%w: at least one active admin must remain", ErrForbidden)
	// ErrUserInactive is returned when a disabled user tries to authenticate.
	ErrUserInactive = fmt.Errorf("%w: user is inactive", ErrForbidden)
	// ErrTaskLimitReached is returned when a role's active task quota is exhausted.
	ErrTaskLimitReached = fmt.Errorf("%w: active task limit reached", ErrForbidden)

	// ErrInvalidStatus is returned for an unknown task status.
	ErrInvalidStatus = fmt.Errorf("%w: invalid status", ErrValidation)
	// ErrInvalidPriority is returned for an unknown task priority.
	ErrInvalidPriority = fmt.Errorf("%w: invalid priority", ErrValidation)
	// ErrInvalidRole is returned for an unknown user role.
	ErrInvalidRole = fmt.Errorf("%w: invalid role", ErrValidation)
	// ErrInvalidPeriod is returned for an unknown analytics period.
	ErrInvalidPeriod = fmt.Errorf("%w: invalid period", ErrValidation)
	// ErrTitleRequired is returned when a task title is empty.
	ErrTitleRequired = fmt.Errorf("%w: title is required", ErrValidation)
	// ErrNameRequired is returned when a category name is empty.
	ErrNameRequired = fmt.Errorf("%w: name is required", ErrValidation)
	// ErrUnknownJob is returned when triggering a maintenance job that does not exist.
	ErrUnknownJob = fmt.Errorf("%w: unknown maintenance job", ErrValidation)

	// ErrCategoryExists is returned when a category name is already taken.
	ErrCategoryExists = fmt.Errorf("%w: category already exists", ErrConflict)
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = fmt.Errorf("%w: email already registered", ErrConflict)
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

var codes = []struct {
	err  error
	code string
}{
	{ErrTaskNotFound, "TASK_NOT_FOUND"},
	{ErrUserNotFound, "USER_NOT_FOUND"},
	{ErrCategoryNotFound, "CATEGORY_NOT_FOUND"},
	{ErrLastAdmin, "LAST_ADMIN"},
	{ErrUserInactive, "USER_INACTIVE"},
	{ErrTaskLimitReached, "TASK_LIMIT_REACHED"},
	{ErrPermissionDenied, "PERMISSION_DENIED"},
	{ErrInvalidStatus, "INVALID_STATUS"},
	{ErrInvalidPriority, "INVALID_PRIORITY"},
	{ErrInvalidRole, "INVALID_ROLE"},
	{ErrInvalidPeriod, "INVALID_PERIOD"},
	{ErrTitleRequired, "TITLE_REQUIRED"},
	{ErrNameRequired, "NAME_REQUIRED"},
	{ErrUnknownJob, "UNKNOWN_JOB"},
	{ErrCategoryExists, "CATEGORY_EXISTS"},
	{ErrEmailTaken, "EMAIL_TAKEN"},
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	status, fallback := statusFor(err)
	if status == http.StatusInternalServerError {
		return NewHTTPError(status, "internal server error", fallback)
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return NewHTTPError(status, c.err.Error(), c.code)
		}
	}
	return NewHTTPError(status, err.Error(), fallback)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "CONFLICT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// IsNotFound reports whether err is a NotFound domain error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsForbidden reports whether err is a Forbidden domain error.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsValidation reports whether err is a Validation domain error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
