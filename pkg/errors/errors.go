package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Upload errors
	ErrorTypeNoImage         ErrorType = "no_image_uploaded"
	ErrorTypeInvalidFileType ErrorType = "invalid_file_type"
	ErrorTypeFileTooLarge    ErrorType = "file_too_large"

	// Provider errors
	ErrorTypeAuthentication     ErrorType = "authentication_failed"
	ErrorTypeInvalidImage       ErrorType = "invalid_image"
	ErrorTypeQuotaExhausted     ErrorType = "quota_exhausted"
	ErrorTypeRateLimited        ErrorType = "rate_limited"
	ErrorTypeTimeout            ErrorType = "timeout_error"
	ErrorTypeServiceUnavailable ErrorType = "service_unavailable"
	ErrorTypeProvider           ErrorType = "provider_error"

	// System errors
	ErrorTypeConfiguration ErrorType = "configuration_error"
	ErrorTypeInternal      ErrorType = "internal_error"
)

// AppError represents a custom application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// HTTPStatus maps the error type to the status code the endpoint responds
// with. The mapping is exhaustive over the closed ErrorType set; anything
// unrecognized falls through to 500.
func (e *AppError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeNoImage, ErrorTypeInvalidFileType, ErrorTypeFileTooLarge, ErrorTypeInvalidImage:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeQuotaExhausted:
		return http.StatusPaymentRequired
	case ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case ErrorTypeTimeout:
		return http.StatusRequestTimeout
	case ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeProvider:
		// Surface the upstream status when the provider handed us a usable one.
		if status, ok := e.Context["provider_status"].(int); ok && status >= 400 && status < 600 {
			return status
		}
		return http.StatusBadGateway
	case ErrorTypeConfiguration, ErrorTypeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve its context
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:    errType,
			Message: message,
			Err:     appErr,
			Context: appErr.Context,
		}
	}

	return &AppError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Is checks if the error is of a specific type
func Is(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// As extracts an *AppError from an error chain, wrapping unclassified
// errors as internal so callers always get a typed error back.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, ErrorTypeInternal, "unexpected error")
}

// Common error constructors

func NewNoImageError() *AppError {
	return New(ErrorTypeNoImage, "No image uploaded")
}

func NewInvalidFileTypeError(mimeType string) *AppError {
	return New(ErrorTypeInvalidFileType, "Invalid file type. Only JPEG, PNG and WebP images are supported").
		WithContext("mime_type", mimeType)
}

func NewFileTooLargeError(sizeBytes, maxBytes int64) *AppError {
	return New(ErrorTypeFileTooLarge, "File too large. Maximum size is 10MB").
		WithContext("size_bytes", sizeBytes).
		WithContext("max_bytes", maxBytes)
}

func NewAuthenticationError(message string) *AppError {
	return New(ErrorTypeAuthentication, message)
}

func NewInvalidImageError(message string) *AppError {
	return New(ErrorTypeInvalidImage, message)
}

func NewQuotaExhaustedError() *AppError {
	return New(ErrorTypeQuotaExhausted, "Provider quota exhausted")
}

func NewRateLimitedError() *AppError {
	return New(ErrorTypeRateLimited, "Provider rate limit hit, try again later")
}

func NewTimeoutError(message string) *AppError {
	return New(ErrorTypeTimeout, message)
}

func WrapTimeoutError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeTimeout, message)
}

func NewServiceUnavailableError(message string) *AppError {
	return New(ErrorTypeServiceUnavailable, message)
}

func WrapServiceUnavailableError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeServiceUnavailable, message)
}

func NewProviderError(status int, detail string) *AppError {
	return New(ErrorTypeProvider, "Background removal service returned an error").
		WithContext("provider_status", status).
		WithContext("provider_detail", detail)
}

func NewConfigurationError(message string) *AppError {
	return New(ErrorTypeConfiguration, message)
}

func NewInternalError(message string) *AppError {
	return New(ErrorTypeInternal, message)
}

func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message)
}
