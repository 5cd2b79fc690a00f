package shared

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an authorization failure
type ErrorType string

const (
	ErrorTypeInvalidCredential       ErrorType = "invalid_credential"
	ErrorTypeInvalidSignature        ErrorType = "invalid_signature"
	ErrorTypeExpired                 ErrorType = "expired"
	ErrorTypeInvalidClaims           ErrorType = "invalid_claims"
	ErrorTypeGroupNotAuthorized      ErrorType = "group_not_authorized"
	ErrorTypeHostAuthorizationFailed ErrorType = "host_authorization_failed"
	ErrorTypeConfiguration           ErrorType = "configuration"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
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

// Is reports whether target is a DomainError of the same type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error.
// Call it on errors built with NewDomainError, never on the package sentinels.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	// ErrInvalidCredential is returned when a request carries no access token
	ErrInvalidCredential = NewDomainError(ErrorTypeInvalidCredential, "access token is invalid", nil)

	// ErrMissingCredential is returned by the verifier for an empty token
	ErrMissingCredential = NewDomainError(ErrorTypeInvalidCredential, "access token is missing", nil)

	// ErrInvalidSignature is returned for malformed tokens or tokens signed with another secret
	ErrInvalidSignature = NewDomainError(ErrorTypeInvalidSignature, "invalid token signature", nil)

	// ErrExpired is returned when the token is past its expiry
	ErrExpired = NewDomainError(ErrorTypeExpired, "token expired", nil)

	// ErrInvalidClaims is returned when a verified token lacks a usable user record
	ErrInvalidClaims = NewDomainError(ErrorTypeInvalidClaims, "invalid token claims", nil)

	// ErrGroupNotAuthorized is returned when a selected group is not granted by the token
	ErrGroupNotAuthorized = NewDomainError(ErrorTypeGroupNotAuthorized, "group not authorized", nil)

	// ErrMissingSecret is returned at startup when no signing secret is configured
	ErrMissingSecret = NewDomainError(ErrorTypeConfiguration, "signing secret is required", nil)
)

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// Classify maps an authorization result onto the error taxonomy.
// Errors that are not domain errors originate from the host's own authorize
// call and are reported as host failures.
func Classify(err error) ErrorType {
	if err == nil {
		return ""
	}
	if t := GetErrorType(err); t != "" {
		return t
	}
	return ErrorTypeHostAuthorizationFailed
}

// IsCredentialError checks if an error rejects the presented credential itself
func IsCredentialError(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeInvalidCredential, ErrorTypeInvalidSignature, ErrorTypeExpired, ErrorTypeInvalidClaims:
		return true
	}
	return false
}

// IsGroupNotAuthorized checks if an error is a rejected group selection
func IsGroupNotAuthorized(err error) bool {
	return GetErrorType(err) == ErrorTypeGroupNotAuthorized
}

// IsHostFailure checks if an error came from the host's authorize call
func IsHostFailure(err error) bool {
	return err != nil && Classify(err) == ErrorTypeHostAuthorizationFailed
}

// Wrap wraps an error with a domain type and message
func Wrap(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}
