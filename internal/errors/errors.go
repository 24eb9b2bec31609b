package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all derivation failure modes
type ErrorCode string

const (
	// InstallationNotFound indicates the organization has no source code integration
	InstallationNotFound ErrorCode = "INSTALLATION_NOT_FOUND"
	// UpstreamAPIError indicates the source-hosting provider rejected a request
	UpstreamAPIError ErrorCode = "UPSTREAM_API_ERROR"
	// LockUnavailable indicates another run holds the project lock
	LockUnavailable ErrorCode = "LOCK_UNAVAILABLE"
	// UnsupportedPlatform indicates the event platform is not derivable
	UnsupportedPlatform ErrorCode = "UNSUPPORTED_PLATFORM"
	// ConfigInvalid indicates a bad configuration value
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// StorageError indicates the persisted state could not be read or written
	StorageError ErrorCode = "STORAGE_ERROR"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// haltCodes are expected conditions: no mutation, reported at reduced severity.
var haltCodes = map[ErrorCode]bool{
	InstallationNotFound: true,
	UpstreamAPIError:     true,
	LockUnavailable:      true,
}

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
	// Retry suggests the operation will succeed on a later event
	Retry FixActionType = "retry"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// DeriveError represents a derivation error with code, message, and suggestions
type DeriveError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new DeriveError with the default fixes for its code
func New(code ErrorCode, message string, cause error) *DeriveError {
	return &DeriveError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *DeriveError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DeriveError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *DeriveError) WithDetails(details interface{}) *DeriveError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first DeriveError in err's chain,
// or InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var de *DeriveError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return InternalError
}

// IsHalt reports whether err is an expected, non-actionable condition.
func IsHalt(err error) bool {
	if err == nil {
		return false
	}
	return haltCodes[CodeOf(err)]
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	InstallationNotFound: {
		{
			Type:        OpenDocs,
			Description: "Install a source code integration for the organization",
		},
	},
	UpstreamAPIError: {
		{
			Type:        Retry,
			Description: "The provider API failed; a later event will retry derivation",
		},
	},
	LockUnavailable: {
		{
			Type:        Retry,
			Description: "Another run holds the project lock; a later event will retry derivation",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "codemap platforms",
			Description: "Inspect the effective platform table",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
