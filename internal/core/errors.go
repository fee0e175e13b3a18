// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAccessDenied  = errors.New("analysis access denied")
	ErrUpstream      = errors.New("upstream provider error")
	ErrRateLimited   = errors.New("rate limited")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrUnsupported   = errors.New("unsupported")
	ErrInternalError = errors.New("internal error")
)

// AppError is the structured failure returned to API callers.
type AppError struct {
	Err        error          `json:"-"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NewAppError(
	err error,
	code, message string,
	status int,
) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: status,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		ErrNotFound,
		"NOT_FOUND",
		resource+" not found",
		http.StatusNotFound,
	)
}

func ValidationError(message string) *AppError {
	return NewAppError(
		ErrInvalidInput,
		"VALIDATION_ERROR",
		message,
		http.StatusBadRequest,
	)
}

func UnauthorizedError(message string) *AppError {
	return NewAppError(
		ErrUnauthorized,
		"UNAUTHORIZED",
		message,
		http.StatusUnauthorized,
	)
}

func ForbiddenError(message string) *AppError {
	return NewAppError(
		ErrForbidden,
		"FORBIDDEN",
		message,
		http.StatusForbidden,
	)
}

func AccessDeniedError(message string) *AppError {
	return NewAppError(
		ErrAccessDenied,
		"ACCESS_DENIED",
		message,
		http.StatusPaymentRequired,
	)
}

func UpstreamError(message string) *AppError {
	return NewAppError(
		ErrUpstream,
		"UPSTREAM_PROVIDER_ERROR",
		message,
		http.StatusBadGateway,
	)
}

func RateLimitedError(retryAfterSeconds int) *AppError {
	return NewAppError(
		ErrRateLimited,
		"RATE_LIMITED",
		fmt.Sprintf(
			"Rate limit exceeded. Retry after %d seconds.",
			retryAfterSeconds,
		),
		http.StatusTooManyRequests,
	).WithDetails(map[string]any{"retry_after": retryAfterSeconds})
}

func TokenExpiredError() *AppError {
	return NewAppError(
		ErrTokenExpired,
		"TOKEN_EXPIRED",
		"access token has expired",
		http.StatusUnauthorized,
	)
}

func TokenInvalidError() *AppError {
	return NewAppError(
		ErrTokenInvalid,
		"TOKEN_INVALID",
		"access token is invalid",
		http.StatusUnauthorized,
	)
}

func InternalError(err error) *AppError {
	return NewAppError(
		err,
		"INTERNAL_ERROR",
		"an internal error occurred",
		http.StatusInternalServerError,
	)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// FromError maps a wrapped sentinel onto its API error. Errors that are
// already an *AppError pass through unchanged.
func FromError(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}

	var mapped *AppError
	switch {
	case errors.Is(err, ErrNotFound):
		mapped = NotFoundError("resource")
	case errors.Is(err, ErrInvalidInput):
		mapped = ValidationError(err.Error())
	case errors.Is(err, ErrUnauthorized):
		mapped = UnauthorizedError("authentication required")
	case errors.Is(err, ErrForbidden):
		mapped = ForbiddenError("insufficient permissions")
	case errors.Is(err, ErrAccessDenied):
		mapped = AccessDeniedError(err.Error())
	case errors.Is(err, ErrUpstream):
		mapped = UpstreamError(err.Error())
	case errors.Is(err, ErrUnsupported):
		mapped = NewAppError(
			ErrUnsupported,
			"UNSUPPORTED",
			err.Error(),
			http.StatusUnsupportedMediaType,
		)
	default:
		return InternalError(err)
	}

	mapped.Err = err
	return mapped
}
