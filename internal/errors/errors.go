package errors

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType string

func (s ErrorType) String() string {
	return strings.ToLower(string(s))
}

const (
	ErrInternalError   ErrorType = "Internal Error"
	ErrNotFound        ErrorType = "Not Found"
	ErrInvalidArgument ErrorType = "Invalid Argument"
	ErrFailedPrecond   ErrorType = "Failed Precondition"

	ErrRemoteUnavailable  ErrorType = "Remote Unavailable"
	ErrTransientRoute     ErrorType = "Transient Route Error"
	ErrSubmissionRejected ErrorType = "Submission Rejected"
	ErrTransferFailure    ErrorType = "Transfer Failure"
	ErrStateConflict      ErrorType = "State Conflict"
	ErrHandlerNotFound    ErrorType = "Handler Not Found"
)

type DomainError struct {
	ErrorType  ErrorType
	Entity     string
	Message    string
	WrappedErr error
}

func NewError(errType ErrorType, entity, msg string) *DomainError {
	return &DomainError{
		ErrorType: errType,
		Entity:    entity,
		Message:   msg,
	}
}

func InternalError(entity, msg string, err error) *DomainError {
	return &DomainError{
		ErrorType:  ErrInternalError,
		Entity:     entity,
		Message:    msg,
		WrappedErr: err,
	}
}

// Wrap keeps the type of a wrapped domain error and treats anything else as internal.
func Wrap(entity, msg string, err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return &DomainError{
			ErrorType:  de.ErrorType,
			Entity:     entity,
			Message:    msg,
			WrappedErr: err,
		}
	}
	return InternalError(entity, msg, err)
}

func InvalidArgument(entity, msg string) *DomainError {
	return NewError(ErrInvalidArgument, entity, msg)
}

func NotFound(entity, msg string) *DomainError {
	return NewError(ErrNotFound, entity, msg)
}

func FailedPrecondition(entity, msg string) *DomainError {
	return NewError(ErrFailedPrecond, entity, msg)
}

// RemoteUnavailable marks a failure to connect or authenticate against the remote system.
func RemoteUnavailable(entity, msg string, err error) *DomainError {
	return &DomainError{
		ErrorType:  ErrRemoteUnavailable,
		Entity:     entity,
		Message:    msg,
		WrappedErr: err,
	}
}

// TransientRoute marks a routing failure of the remote proxy that may succeed on another attempt.
func TransientRoute(entity, msg string, err error) *DomainError {
	return &DomainError{
		ErrorType:  ErrTransientRoute,
		Entity:     entity,
		Message:    msg,
		WrappedErr: err,
	}
}

func SubmissionRejected(entity, msg string, err error) *DomainError {
	return &DomainError{
		ErrorType:  ErrSubmissionRejected,
		Entity:     entity,
		Message:    msg,
		WrappedErr: err,
	}
}

func TransferFailure(entity, msg string, err error) *DomainError {
	return &DomainError{
		ErrorType:  ErrTransferFailure,
		Entity:     entity,
		Message:    msg,
		WrappedErr: err,
	}
}

func StateConflict(entity, msg string) *DomainError {
	return NewError(ErrStateConflict, entity, msg)
}

func HandlerNotFound(entity, msg string) *DomainError {
	return NewError(ErrHandlerNotFound, entity, msg)
}

func (e *DomainError) Error() string {
	if e.WrappedErr != nil {
		return fmt.Sprintf("%v for entity %v: %v: %v",
			e.ErrorType.String(), e.Entity, e.Message, e.WrappedErr)
	}
	return fmt.Sprintf("%v for entity %v: %v",
		e.ErrorType.String(), e.Entity, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.WrappedErr
}

// IsErrorType reports whether any DomainError in the chain of err has the given type.
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		var de *DomainError
		if !errors.As(err, &de) {
			return false
		}
		if de.ErrorType == errType {
			return true
		}
		err = de.WrappedErr
	}
	return false
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
