// Package errors provides the structured error taxonomy shared by the SDK and its hosts.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidArgument          ErrorCode = "INVALID_ARGUMENT"
	ErrCodeUnsupportedConfiguration ErrorCode = "UNSUPPORTED_CONFIGURATION"

	ErrCodeEngine         ErrorCode = "ENGINE_ERROR"
	ErrCodeTransport      ErrorCode = "TRANSPORT_ERROR"
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeDecodeFailed   ErrorCode = "DECODE_FAILED"

	ErrCodeAnswersInvalid ErrorCode = "ANSWERS_INVALID"

	ErrCodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeNoCurrentWorkItem  ErrorCode = "NO_CURRENT_WORK_ITEM"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	LogRef    string                 `json:"logRef,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	msg := fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.LogRef != "" {
		msg += " (logRef: " + e.LogRef + ")"
	}
	return msg
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidArgumentError reports a missing or malformed parameter. It is
// raised before any engine call.
func NewInvalidArgumentError(param, details, logRef string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidArgument,
		Message:   fmt.Sprintf("Invalid argument '%s'", param),
		Details:   details,
		Retryable: false,
		LogRef:    logRef,
		Metadata:  map[string]interface{}{"parameter": param},
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsupportedConfigurationError reports a request the backend cannot serve as configured.
func NewUnsupportedConfigurationError(details, logRef string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedConfiguration,
		Message:   "Unsupported configuration",
		Details:   details,
		Retryable: false,
		LogRef:    logRef,
		Timestamp: time.Now().UTC(),
	}
}

// NewEngineError wraps a failure reported by the document-assembly engine.
func NewEngineError(operation, details, logRef string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEngine,
		Message:   fmt.Sprintf("Engine '%s' failed", operation),
		Details:   details,
		Retryable: false,
		LogRef:    logRef,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportError wraps a network failure talking to the engine.
func NewTransportError(operation string, err error, logRef string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransport,
		Message:   fmt.Sprintf("Transport error during '%s'", operation),
		Details:   err.Error(),
		Retryable: true,
		LogRef:    logRef,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewAuthenticationError reports a rejected request signature or credential.
func NewAuthenticationError(details, logRef string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthentication,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		LogRef:    logRef,
		Timestamp: time.Now().UTC(),
	}
}

// NewDecodeFailedError reports an unreadable engine response.
func NewDecodeFailedError(what string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDecodeFailed,
		Message:   fmt.Sprintf("Failed to decode %s", what),
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewAnswersInvalidError reports answer XML that cannot be parsed.
func NewAnswersInvalidError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnswersInvalid,
		Message:   "Answer set could not be read",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewSessionNotFoundError reports an unknown or expired session id.
func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Session not found",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionStoreFailedError wraps a session persistence failure.
func NewSessionStoreFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailed,
		Message:   fmt.Sprintf("Session store '%s' failed", op),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewNoCurrentWorkItemError reports an operation that needs a current work item
// on a session that has none.
func NewNoCurrentWorkItemError(logRef string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoCurrentWorkItem,
		Message:   "Session has no current work item",
		Retryable: false,
		LogRef:    logRef,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandardError finds a *StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first StandardError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ""
}

// IsRetryable reports whether err is marked retryable.
func IsRetryable(err error) bool {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Retryable
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "SESSION") || strings.Contains(codeStr, "WORK_ITEM"):
		return "SESSION"
	case code == ErrCodeEngine || code == ErrCodeTransport || code == ErrCodeAuthentication:
		return "ENGINE"
	case code == ErrCodeDecodeFailed:
		return "PROTOCOL"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "UNSUPPORTED"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
