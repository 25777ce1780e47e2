package ranking

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every *Error matches exactly one of these via errors.Is.
var (
	ErrAlreadyRegistered      = errors.New("entity type already registered")
	ErrNotRegistered          = errors.New("entity type not registered")
	ErrTypologyNotImplemented = errors.New("typology not implemented")
	ErrManagerDoesNotExist    = errors.New("accessor does not exist")
	ErrInvalidHandler         = errors.New("invalid handler")

	// ErrStorageFailure marks transient backing store errors. A flush that
	// failed with it never promoted anything and can be retried as a whole.
	ErrStorageFailure = errors.New("storage failure")
)

// ErrorCode categorizes ranking errors.
type ErrorCode string

const (
	CodeAlreadyRegistered      ErrorCode = "ALREADY_REGISTERED"
	CodeNotRegistered          ErrorCode = "NOT_REGISTERED"
	CodeTypologyNotImplemented ErrorCode = "TYPOLOGY_NOT_IMPLEMENTED"
	CodeManagerDoesNotExist    ErrorCode = "MANAGER_DOES_NOT_EXIST"
	CodeInvalidHandler         ErrorCode = "INVALID_HANDLER"
)

var codeSentinels = map[ErrorCode]error{
	CodeAlreadyRegistered:      ErrAlreadyRegistered,
	CodeNotRegistered:          ErrNotRegistered,
	CodeTypologyNotImplemented: ErrTypologyNotImplemented,
	CodeManagerDoesNotExist:    ErrManagerDoesNotExist,
	CodeInvalidHandler:         ErrInvalidHandler,
}

// Error is a registry or validation error. These are caller errors and are
// never retried.
type Error struct {
	Code       ErrorCode
	EntityType string
	Typology   string // empty unless the error concerns one typology
	Message    string
}

func (e *Error) Error() string {
	switch {
	case e.EntityType != "" && e.Typology != "":
		return fmt.Sprintf("%s: %s (entity_type=%s, typology=%s)", e.Code, e.Message, e.EntityType, e.Typology)
	case e.EntityType != "":
		return fmt.Sprintf("%s: %s (entity_type=%s)", e.Code, e.Message, e.EntityType)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Is matches the sentinel for e.Code.
func (e *Error) Is(target error) bool {
	return codeSentinels[e.Code] == target
}

// NewTypologyError reports a typology the handler does not declare.
func NewTypologyError(entityType, typology string) *Error {
	return &Error{
		Code:       CodeTypologyNotImplemented,
		EntityType: entityType,
		Typology:   typology,
		Message:    fmt.Sprintf("typology %q is not declared by the handler", typology),
	}
}

// NewAccessorError reports a handler naming an accessor the entity type lacks.
func NewAccessorError(entityType, accessor string) *Error {
	return &Error{
		Code:       CodeManagerDoesNotExist,
		EntityType: entityType,
		Message:    fmt.Sprintf("accessor %q does not exist", accessor),
	}
}

// FlushError reports a flush aborted for one typology. The active buffer of
// that typology is untouched when a FlushError is returned.
type FlushError struct {
	EntityType string
	Typology   string

	// Batch is the zero-based index of the batch being written when the
	// flush failed, or -1 when it failed before or after the batch phase.
	Batch int

	// Written is the number of staging rows written before the failure.
	Written int64

	Err error
}

func (e *FlushError) Error() string {
	if e.Batch >= 0 {
		return fmt.Sprintf("flush %s:%s: batch %d (%d rows written): %v", e.EntityType, e.Typology, e.Batch, e.Written, e.Err)
	}
	return fmt.Sprintf("flush %s:%s: %v", e.EntityType, e.Typology, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// StorageError tags err as a storage failure of operation op.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

// IsRetryable reports whether err is a storage failure. Registry and
// validation errors are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}

// IsTypologyError reports whether err is (or wraps) a TypologyNotImplemented error.
func IsTypologyError(err error) bool {
	return errors.Is(err, ErrTypologyNotImplemented)
}
