// Package errors provides the stable error codes shared across qpg.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: the component that produced the error (handshake, channel, command, ...)
//   - error: the specific failure within that domain
//
// Callers branch on codes with errors.Is against the package-level
// sentinels exported by each component, or with GetCode.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
const (
	// Handshake domain - key exchange with the preference service
	CodeHandshakeFailed = "handshake.failed" // Initiate/complete/encapsulate failed

	// Channel domain - authenticated encryption
	CodeDecryptionFailed = "channel.decryption_failed" // Tag mismatch, bad encoding or wrong key
	CodeChannelOffline   = "channel.offline"           // Session has no shared secret

	// Model domain - language model replies
	CodeMalformedModelReply = "model.malformed_reply" // Reply is not a {message, command} object

	// Command domain - authorization gate
	CodeUnauthorizedCommand = "command.unauthorized" // Base command not in the allowlist
	CodeMalformedCommand    = "command.malformed"    // Not base + one trailing value

	// Preferences domain - remote preference store
	CodePreferenceUpdateFailed = "preferences.update_failed" // Remote persist failed
	CodePreferenceLoadFailed   = "preferences.load_failed"   // Neither remote nor bundled set usable

	// General domain
	CodeUnknown = "error.unknown"
)

// CodedError wraps an error with a stable error code.
type CodedError struct {
	Code    string // Stable error code (e.g., "command.unauthorized")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a CodedError with the same code. This lets
// sentinels such as channel.ErrDecryptionFailed match any wrapped instance.
func (e *CodedError) Is(target error) bool {
	t, ok := target.(*CodedError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// Falls back to CodeUnknown for errors that carry no code.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}
