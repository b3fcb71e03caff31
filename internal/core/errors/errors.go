// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - Unexported errors (err*): Use for internal package errors
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Channel and entity resolution errors.
var (
	// ErrChannelNotFound indicates a channel could not be found upstream.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrNotAChannel indicates the resolved entity is not a broadcast channel.
	ErrNotAChannel = errors.New("entity is not a channel")

	// ErrNotFound is a generic not found error.
	ErrNotFound = errors.New("not found")
)

// Client and connection errors.
var (
	// ErrClientNotInitialized indicates a client has not been initialized.
	ErrClientNotInitialized = errors.New("client not initialized")

	// ErrMissingCredentials indicates a required credential is absent at startup.
	ErrMissingCredentials = errors.New("missing credentials")
)

// Response and parsing errors.
var (
	// ErrEmptyResponse indicates an empty response was received.
	ErrEmptyResponse = errors.New("empty response")

	// ErrMalformedResponse indicates a generation response is not valid JSON
	// or does not match the requested schema.
	ErrMalformedResponse = errors.New("malformed response")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")
)

// Rate limiting errors.
var (
	// ErrRateLimited indicates the upstream asked us to slow down.
	ErrRateLimited = errors.New("rate limited")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
