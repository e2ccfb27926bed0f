package errors

import (
	"fmt"
)

// Error codes used across the controller. Commands return these so the
// caller can distinguish a rejected action from a transport problem.
const (
	CodeStreamActive    = "STREAM_ACTIVE"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeTransportFailed = "TRANSPORT_FAILED"
	CodeEngineError     = "ENGINE_ERROR"
	CodeInvalidPhase    = "INVALID_PHASE"
	CodeAlreadyVoted    = "ALREADY_VOTED"
	CodeGhostMode       = "GHOST_MODE"
)

// AppError represents an application error with an error code
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewStreamActiveError signals that a stream-opening command was rejected
// because another stream already owns the connection
func NewStreamActiveError(action string) *AppError {
	return NewError(CodeStreamActive, fmt.Sprintf("stream already active, %s rejected", action))
}

// NewSessionNotFoundError signals a command issued with no live session
func NewSessionNotFoundError() *AppError {
	return NewError(CodeSessionNotFound, "no active game session")
}

// NewTransportError wraps a transport-level failure
func NewTransportError(err error) *AppError {
	return NewError(CodeTransportFailed, err.Error())
}

// NewGhostModeError signals an action unavailable to an eliminated player
func NewGhostModeError() *AppError {
	return NewError(CodeGhostMode, "eliminated players can only observe")
}

// NewInvalidPhaseError signals a command issued in the wrong game phase
func NewInvalidPhaseError(current string, action string) *AppError {
	return NewError(CodeInvalidPhase, fmt.Sprintf("%s not available during %s phase", action, current))
}

// Is checks if the target error is of type AppError with the same code
func Is(err error, target *AppError) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Code == target.Code
}

// HasCode reports whether err is an AppError carrying the given code
func HasCode(err error, code string) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Code == code
}
