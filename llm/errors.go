package llm

import (
	"errors"
	"fmt"
)

// Error represents a provider-neutral error from this package.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int   // HTTP status when the provider reported one
	Attempts   int   // attempts made before giving up, for transport errors
	Err        error // underlying cause
}

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeConfiguration covers invalid setup: unknown provider names,
	// missing required collaborators, bad option combinations.
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeNotFound covers lookups of absent registry entries.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeProtocol covers violations of an internal contract, such as a
	// selector response without the required selections payload. Protocol
	// errors are fatal and never defaulted away.
	ErrorTypeProtocol ErrorType = "protocol"
	// ErrorTypeTransport covers request failures surfaced after retries are
	// exhausted.
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeDataFormat covers response payloads that could not be parsed
	// into the requested structured form.
	ErrorTypeDataFormat ErrorType = "data_format"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsConfigurationError checks if an error is a configuration error.
func IsConfigurationError(err error) bool {
	return hasType(err, ErrorTypeConfiguration)
}

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsProtocolError checks if an error is a protocol violation.
func IsProtocolError(err error) bool {
	return hasType(err, ErrorTypeProtocol)
}

// IsTransportError checks if an error is a transport failure.
func IsTransportError(err error) bool {
	return hasType(err, ErrorTypeTransport)
}

// IsDataFormatError checks if an error is a data format error.
func IsDataFormatError(err error) bool {
	return hasType(err, ErrorTypeDataFormat)
}

func hasType(err error, t ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == t
	}
	return false
}

// NewConfigurationError creates a new configuration error.
func NewConfigurationError(format string, args ...any) *Error {
	return &Error{
		Type:    ErrorTypeConfiguration,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(format string, args ...any) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewProtocolError creates a new protocol violation error.
func NewProtocolError(format string, args ...any) *Error {
	return &Error{
		Type:    ErrorTypeProtocol,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewTransportError creates a new transport error wrapping the last failure.
func NewTransportError(message string, attempts int, err error) *Error {
	return &Error{
		Type:     ErrorTypeTransport,
		Message:  message,
		Attempts: attempts,
		Err:      err,
	}
}

// NewDataFormatError creates a new data format error wrapping the parse failure.
func NewDataFormatError(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeDataFormat,
		Message: message,
		Err:     err,
	}
}
