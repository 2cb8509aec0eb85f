package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ResponseCode numeric code carried in every response envelope
type ResponseCode int

const (
	CodeSuccess           ResponseCode = 0
	CodeInvalidParam      ResponseCode = 1001
	CodeUnauthorized      ResponseCode = 1002
	CodeForbidden         ResponseCode = 1003
	CodeInternalError     ResponseCode = 1004
	CodeNotFound          ResponseCode = 1005
	CodeConflict          ResponseCode = 1006
	CodeInsufficientStock ResponseCode = 1007
	CodeRateLimit         ResponseCode = 1008
)

// ErrorKind stable machine-checkable error category
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation_error"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindForbidden         ErrorKind = "forbidden"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindRateLimited       ErrorKind = "rate_limited"
	KindInternal          ErrorKind = "internal_failure"
)

var codeKinds = map[ResponseCode]ErrorKind{
	CodeInvalidParam:      KindValidation,
	CodeUnauthorized:      KindUnauthorized,
	CodeForbidden:         KindForbidden,
	CodeInternalError:     KindInternal,
	CodeNotFound:          KindNotFound,
	CodeConflict:          KindConflict,
	CodeInsufficientStock: KindInsufficientStock,
	CodeRateLimit:         KindRateLimited,
}

// Kind returns the error category of the code
func (c ResponseCode) Kind() ErrorKind {
	if kind, ok := codeKinds[c]; ok {
		return kind
	}
	return KindInternal
}

// HTTPStatus maps the code to its HTTP status
func (c ResponseCode) HTTPStatus() int {
	switch c {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeConflict, CodeInsufficientStock:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// AppError application error structure
type AppError struct {
	Code    ResponseCode           `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implement error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Code.Kind(), e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code.Kind())
}

// Unwrap implement errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind returns the error category
func (e *AppError) Kind() ErrorKind {
	return e.Code.Kind()
}

// WithDetails returns a copy carrying extra machine-readable fields
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// NewError create new application error
func NewError(code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// WrapError wrap error
func WrapError(err error, code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func Validation(format string, args ...interface{}) *AppError {
	return NewError(CodeInvalidParam, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...interface{}) *AppError {
	return NewError(CodeNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...interface{}) *AppError {
	return NewError(CodeConflict, fmt.Sprintf(format, args...))
}

// Internal wraps an unexpected fault; message is what clients see
func Internal(err error, message string) *AppError {
	return WrapError(err, CodeInternalError, message)
}

// Predefined errors
var (
	ErrInvalidParam  = NewError(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized  = NewError(CodeUnauthorized, "user session not found")
	ErrForbidden     = NewError(CodeForbidden, "insufficient permissions")
	ErrInternalError = NewError(CodeInternalError, "internal server error")
)

// IsAppError check if it's an application error
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetErrorCode get error code
func GetErrorCode(err error) ResponseCode {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternalError
}

// GetErrorMessage returns the client-safe message; unknown errors never leak their text
func GetErrorMessage(err error) string {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Message
	}
	return ErrInternalError.Message
}
