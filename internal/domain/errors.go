package domain

import (
	"errors"
	"fmt"
)

// Error is implemented by every coded error the service returns
type Error interface {
	error
	GetCode() string
	GetMessage() string
}

// ErrorCode is a coded, comparable error value
type ErrorCode struct {
	Code    string
	Message string
}

// NewError creates a new coded error
func NewError(code, message string) *ErrorCode {
	return &ErrorCode{Code: code, Message: message}
}

func (e *ErrorCode) Error() string {
	return e.Message
}

// GetCode returns the machine readable code
func (e *ErrorCode) GetCode() string {
	return e.Code
}

// GetMessage returns the human readable message
func (e *ErrorCode) GetMessage() string {
	return e.Message
}

var (
	// ErrUnknownProvider is returned when no factory is registered for a provider id
	ErrUnknownProvider = NewError("UNKNOWN_PROVIDER", "unknown provider")

	// ErrProviderAlreadyRegistered is returned when a provider id is registered twice
	ErrProviderAlreadyRegistered = NewError("PROVIDER_ALREADY_REGISTERED", "provider already registered")

	// ErrRegistryFrozen is returned when registering after the registry was frozen
	ErrRegistryFrozen = NewError("REGISTRY_FROZEN", "provider registry is frozen")

	// ErrProviderUnavailable is returned when the provider cannot be reached
	ErrProviderUnavailable = NewError("PROVIDER_UNAVAILABLE", "provider unavailable")

	// ErrInvalidVerifier is returned when an OAuth1 callback lacks or carries a bad verifier
	ErrInvalidVerifier = NewError("INVALID_VERIFIER", "invalid or missing oauth verifier")

	// ErrAuthorizationDenied is returned when the user or provider refused authorization
	ErrAuthorizationDenied = NewError("AUTHORIZATION_DENIED", "authorization denied")

	// ErrTokenExchange is returned when the provider rejects a code, verifier or token
	ErrTokenExchange = NewError("TOKEN_EXCHANGE_FAILED", "token exchange failed")

	// ErrDuplicateConnection is returned when the connection key already exists for the user
	ErrDuplicateConnection = NewError("DUPLICATE_CONNECTION", "connection already exists")

	// ErrAuthSessionNotFound is returned when no pending authorization exists for the callback
	ErrAuthSessionNotFound = NewError("AUTH_SESSION_NOT_FOUND", "authorization session not found or expired")

	// ErrInvalidState is returned when the OAuth2 state parameter does not verify
	ErrInvalidState = NewError("INVALID_STATE", "invalid state parameter")

	// ErrInvalidCallback is returned when a callback carries no usable parameters
	ErrInvalidCallback = NewError("INVALID_CALLBACK", "invalid callback parameters")

	// ErrInvalidRequest is returned when request parameters fail validation
	ErrInvalidRequest = NewError("INVALID_REQUEST", "invalid request parameters")

	// ErrConnectionNotFound is returned when a connection does not exist
	ErrConnectionNotFound = NewError("CONNECTION_NOT_FOUND", "connection not found")

	// ErrUnauthorized is returned when the request carries no user identity
	ErrUnauthorized = NewError("UNAUTHORIZED", "unauthorized")

	// ErrRateLimited is returned when a client exceeds its request rate
	ErrRateLimited = NewError("RATE_LIMITED", "rate limit exceeded")

	// ErrDatabaseQuery is returned when a storage operation fails
	ErrDatabaseQuery = NewError("DATABASE_ERROR", "database query failed")

	// ErrInternal is returned when there is an internal server error
	ErrInternal = NewError("INTERNAL_ERROR", "internal server error")
)

// DuplicateConnectionError carries the connection whose key collided
type DuplicateConnectionError struct {
	Connection *Connection
}

// NewDuplicateConnectionError creates a new DuplicateConnectionError
func NewDuplicateConnectionError(conn *Connection) *DuplicateConnectionError {
	return &DuplicateConnectionError{Connection: conn}
}

func (e *DuplicateConnectionError) Error() string {
	if e.Connection == nil {
		return ErrDuplicateConnection.Message
	}
	return fmt.Sprintf("%s: %s", ErrDuplicateConnection.Message, e.Connection.Key)
}

// Is reports whether target is ErrDuplicateConnection
func (e *DuplicateConnectionError) Is(target error) bool {
	return target == ErrDuplicateConnection
}

// GetCode returns the duplicate connection code
func (e *DuplicateConnectionError) GetCode() string {
	return ErrDuplicateConnection.Code
}

// GetMessage returns the duplicate connection message
func (e *DuplicateConnectionError) GetMessage() string {
	return ErrDuplicateConnection.Message
}

// AsError returns the first coded error in err's chain, or ErrInternal
func AsError(err error) Error {
	if err == nil {
		return nil
	}
	var coded Error
	if errors.As(err, &coded) {
		return coded
	}
	return ErrInternal
}

// CodeOf returns the code of the first coded error in err's chain
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return AsError(err).GetCode()
}
