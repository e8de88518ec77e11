package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a devctx error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"      // 400
	ErrEmptyNote         ErrorCode = "EMPTY_NOTE"           // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"            // 404
	ErrNoHistory         ErrorCode = "NO_HISTORY"           // 404
	ErrSessionNotActive  ErrorCode = "SESSION_NOT_ACTIVE"   // 409
	ErrNotAGitRepository ErrorCode = "NOT_A_GIT_REPOSITORY" // 422
	ErrVcsCommandFailed  ErrorCode = "VCS_COMMAND_FAILED"   // 502
	ErrStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"    // 503
	ErrInternal          ErrorCode = "INTERNAL"             // 500
)

// DevctxError represents a structured error with code, status, and details.
type DevctxError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *DevctxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *DevctxError {
	return &DevctxError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewEmptyNote creates a 400 error for notes that are blank after trimming.
func NewEmptyNote() *DevctxError {
	return &DevctxError{
		Code:    ErrEmptyNote,
		Status:  400,
		Message: "note text must not be empty",
	}
}

// NewNotFound creates a 404 error for a missing project or session.
func NewNotFound(kind, identifier string) *DevctxError {
	return &DevctxError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewNoHistory creates a 404 error for projects that have never ended a session.
// Distinct from NotFound: the project exists but has nothing to resume from.
func NewNoHistory(projectID string) *DevctxError {
	return &DevctxError{
		Code:    ErrNoHistory,
		Status:  404,
		Message: "no ended sessions recorded for this project",
		Details: map[string]any{"project_id": projectID},
	}
}

// NewSessionNotActive creates a 409 error for lifecycle precondition violations.
func NewSessionNotActive(sessionID string) *DevctxError {
	return &DevctxError{
		Code:    ErrSessionNotActive,
		Status:  409,
		Message: fmt.Sprintf("session is not active: %s", sessionID),
		Details: map[string]any{"session_id": sessionID},
	}
}

// NewNotAGitRepository creates a 422 error when no VCS root is found.
func NewNotAGitRepository(path string) *DevctxError {
	return &DevctxError{
		Code:    ErrNotAGitRepository,
		Status:  422,
		Message: fmt.Sprintf("not a git repository: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewVcsCommandFailed creates a 502 error for git subprocess failures.
func NewVcsCommandFailed(err error) *DevctxError {
	msg := "git command failed"
	if err != nil {
		msg = fmt.Sprintf("git command failed: %v", err)
	}
	return &DevctxError{
		Code:    ErrVcsCommandFailed,
		Status:  502,
		Message: msg,
	}
}

// NewStoreUnavailable creates a 503 error when the database cannot be
// opened or a transaction cannot commit. There is no degraded mode for
// a broken persistence layer.
func NewStoreUnavailable(err error) *DevctxError {
	msg := "store unavailable"
	if err != nil {
		msg = fmt.Sprintf("store unavailable: %v", err)
	}
	return &DevctxError{
		Code:    ErrStoreUnavailable,
		Status:  503,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *DevctxError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &DevctxError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a DevctxError with the given code.
// Wrapped errors are unwrapped.
func Is(err error, code ErrorCode) bool {
	var dErr *DevctxError
	if stderrors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
