package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeBadRequest      ErrorType = "bad_request"
	ErrorTypeUnauthenticated ErrorType = "unauthenticated"
	ErrorTypeForbidden       ErrorType = "forbidden"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeMisconfigured   ErrorType = "provider_misconfigured"
	ErrorTypeInternal        ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && (t.Message == "" || e.Message == t.Message)
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Domain error variables. Message values of client-facing errors are wire
// contract text and must not change.

var (
	ErrEmailPasswordRequired = NewDomainError(ErrorTypeBadRequest, "Email and password are required", nil)
	ErrRefreshTokenRequired  = NewDomainError(ErrorTypeBadRequest, "Refresh token is required", nil)
	ErrNothingToRevoke       = NewDomainError(ErrorTypeBadRequest, "No token provided", nil)

	ErrInvalidCredentials = NewDomainError(ErrorTypeUnauthenticated, "Invalid email or password", nil)
	ErrInvalidToken       = NewDomainError(ErrorTypeUnauthenticated, "Invalid or expired token", nil)

	ErrForbidden = NewDomainError(ErrorTypeForbidden, "Forbidden", nil)

	ErrUserNotFound = NewDomainError(ErrorTypeNotFound, "user not found", nil)

	ErrProviderMisconfigured = NewDomainError(ErrorTypeMisconfigured, "identity provider not configured", nil)

	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// IsBadRequestError checks if an error is a bad request error
func IsBadRequestError(err error) bool {
	return hasType(err, ErrorTypeBadRequest)
}

// IsUnauthenticatedError checks if an error is an unauthenticated error
func IsUnauthenticatedError(err error) bool {
	return hasType(err, ErrorTypeUnauthenticated)
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return hasType(err, ErrorTypeForbidden)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// ClientMessage returns the safe client-facing message for an error.
// Internal error text never reaches the client.
func ClientMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Type != ErrorTypeInternal {
		return domainErr.Message
	}
	return "internal server error"
}

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}
