package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Steady-state failure taxonomy. Auth, crawl, sink and poll failures are all
// survivable: the next scheduled tick (or re-login) retries independently.
var (
	ErrNotFound    = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation  = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal    = NewError("INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
	ErrTimeout     = NewError("TIMEOUT", "operation timed out", http.StatusRequestTimeout)
	ErrAuthFailed  = NewError("AUTH_FAILED", "authentication attempt failed", http.StatusUnauthorized)
	ErrAuthExpired = NewError("AUTH_EXPIRED", "session no longer authenticated", http.StatusUnauthorized)
	ErrOTPTimeout  = NewError("OTP_TIMEOUT", "verification code not retrieved in time", http.StatusRequestTimeout)
	ErrCrawl       = NewError("CRAWL_FAILED", "order detail crawl failed", http.StatusBadGateway)
	ErrSink        = NewError("SINK_FAILED", "record append rejected", http.StatusBadGateway)
	ErrPoll        = NewError("POLL_FAILED", "candidate query failed", http.StatusBadGateway)
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var appErr *Error
	if errors.As(target, &appErr) {
		return e.Code == appErr.Code
	}
	return false
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	return e.Code != ErrValidation.Code && e.Code != ErrNotFound.Code
}

func (e *Error) IsFatal() bool {
	if e.retryable != nil {
		return !*e.retryable
	}

	if e.Cause != nil {
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return fatalErr.IsFatal()
		}
	}

	return e.Code == ErrValidation.Code || e.Code == ErrNotFound.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	if err.Details == nil {
		err.Details = make(map[string]interface{})
	}
	err.Details[key] = value
	return &err
}

func (e *Error) AsRetryable() *Error {
	err := *e
	retryable := true
	err.retryable = &retryable
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	retryable := false
	err.retryable = &retryable
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func HasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsAuthExpired(err error) bool {
	return HasCode(err, ErrAuthExpired.Code)
}

func IsOTPTimeout(err error) bool {
	return HasCode(err, ErrOTPTimeout.Code)
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response["details"] = appErr.Details
	}

	return response
}
