// Package errors provides custom error types for FarmOps
package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// FarmOpsError is the base interface for all FarmOps errors
type FarmOpsError interface {
	error
	HTTPStatus() int
	Code() string
}

// BaseError is the base implementation of FarmOpsError
type BaseError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"code"`
	Details    string `json:"details,omitempty"`
}

func (e *BaseError) Error() string {
	return e.Message
}

func (e *BaseError) HTTPStatus() int {
	return e.StatusCode
}

func (e *BaseError) Code() string {
	return e.ErrorCode
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	BaseError
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s not found", resource),
			StatusCode: http.StatusNotFound,
			ErrorCode:  "NOT_FOUND",
		},
		Resource: resource,
	}
}

// FieldError is a single field-scoped validation failure. Field uses
// dotted paths for nested payloads, e.g. "items.0.quantity".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field failure found in a payload.
// Callers accumulate all failures before returning, so nothing is
// persisted when any field is bad.
type ValidationError struct {
	BaseError
	Fields []FieldError `json:"fields,omitempty"`
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "VALIDATION_ERROR",
		},
		Fields: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors wraps an accumulated list of field failures
func NewValidationErrors(fields []FieldError) *ValidationError {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return &ValidationError{
		BaseError: BaseError{
			Message:    strings.Join(msgs, "; "),
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "VALIDATION_ERROR",
		},
		Fields: fields,
	}
}

// ConflictError represents a conflict error (e.g., duplicate)
type ConflictError struct {
	BaseError
	Resource string
}

func NewConflictError(resource string) *ConflictError {
	return &ConflictError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s already exists", resource),
			StatusCode: http.StatusConflict,
			ErrorCode:  "CONFLICT",
		},
		Resource: resource,
	}
}

// NewConflictErrorf builds a ConflictError with a custom message
func NewConflictErrorf(format string, args ...interface{}) *ConflictError {
	return &ConflictError{
		BaseError: BaseError{
			Message:    fmt.Sprintf(format, args...),
			StatusCode: http.StatusConflict,
			ErrorCode:  "CONFLICT",
		},
	}
}

// StateError represents an operation attempted from the wrong lifecycle state
type StateError struct {
	BaseError
	Resource string
	Current  string
}

func NewStateError(resource, current, action string) *StateError {
	return &StateError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("cannot %s %s in status %s", action, resource, current),
			StatusCode: http.StatusConflict,
			ErrorCode:  "INVALID_STATE",
		},
		Resource: resource,
		Current:  current,
	}
}

// DeadlineError represents an operation attempted past its cutoff
type DeadlineError struct {
	BaseError
	Cutoff time.Time
}

func NewDeadlineError(action string, cutoff time.Time) *DeadlineError {
	return &DeadlineError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s is past the cutoff of %s", action, cutoff.Format("15:04")),
			StatusCode: http.StatusUnprocessableEntity,
			ErrorCode:  "PAST_CUTOFF",
		},
		Cutoff: cutoff,
	}
}

// PermissionDeniedError represents a permission denied error
type PermissionDeniedError struct {
	BaseError
	Action   string
	Resource string
}

func NewPermissionDeniedError(action, resource string) *PermissionDeniedError {
	return &PermissionDeniedError{
		BaseError: BaseError{
			Message:    "permission denied",
			StatusCode: http.StatusForbidden,
			ErrorCode:  "PERMISSION_DENIED",
		},
		Action:   action,
		Resource: resource,
	}
}

// NewPermissionDeniedReason builds a PermissionDeniedError with an explicit message
func NewPermissionDeniedReason(action, resource, message string) *PermissionDeniedError {
	e := NewPermissionDeniedError(action, resource)
	e.Message = message
	return e
}

// UnauthorizedError represents an authentication error
type UnauthorizedError struct {
	BaseError
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	if message == "" {
		message = "authentication required"
	}
	return &UnauthorizedError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusUnauthorized,
			ErrorCode:  "UNAUTHORIZED",
		},
	}
}

// InternalError represents an internal server error
type InternalError struct {
	BaseError
	OriginalError error
}

func NewInternalError(original error) *InternalError {
	return &InternalError{
		BaseError: BaseError{
			Message:    "internal server error",
			StatusCode: http.StatusInternalServerError,
			ErrorCode:  "INTERNAL_ERROR",
		},
		OriginalError: original,
	}
}

// BadRequestError represents a generic bad request error
type BadRequestError struct {
	BaseError
}

func NewBadRequestError(message string) *BadRequestError {
	return &BadRequestError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "BAD_REQUEST",
		},
	}
}

// ToHTTPError converts any error to an appropriate HTTP response
func ToHTTPError(err error) (int, map[string]interface{}) {
	if err == nil {
		return http.StatusOK, nil
	}

	if ve, ok := err.(*ValidationError); ok {
		return ve.HTTPStatus(), map[string]interface{}{
			"error":   ve.Code(),
			"message": ve.Error(),
			"fields":  ve.Fields,
		}
	}

	if fe, ok := err.(FarmOpsError); ok {
		return fe.HTTPStatus(), map[string]interface{}{
			"error":   fe.Code(),
			"message": fe.Error(),
		}
	}

	// Default to internal server error for unknown errors
	return http.StatusInternalServerError, map[string]interface{}{
		"error":   "INTERNAL_ERROR",
		"message": "internal server error",
	}
}
