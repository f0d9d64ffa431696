package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")

	ErrExtraction        = errors.New("pdf extraction failed")
	ErrLLM               = errors.New("llm extraction failed")
	ErrDuplicate         = errors.New("duplicate record")
	ErrMissingCredential = errors.New("model credential is not configured")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ExtractionError means the document could not be parsed or reconstructed as text.
type ExtractionError struct {
	Page  int // 0 when the failure is not page specific
	Cause error
}

func NewExtractionError(page int, cause error) *ExtractionError {
	return &ExtractionError{Page: page, Cause: cause}
}

func (e *ExtractionError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%v: page %d: %v", ErrExtraction, e.Page, e.Cause)
	}
	return fmt.Sprintf("%v: %v", ErrExtraction, e.Cause)
}

func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Cause} }

// LLMErrorKind separates failures worth retrying from ones that will recur.
type LLMErrorKind string

const (
	LLMTransient LLMErrorKind = "transient"
	LLMFatal     LLMErrorKind = "fatal"
)

// LLMError is a classified failure of the model call.
type LLMError struct {
	Kind     LLMErrorKind
	Attempts int
	Cause    error
}

func NewTransientLLMError(cause error) *LLMError {
	return &LLMError{Kind: LLMTransient, Cause: cause}
}

func NewFatalLLMError(cause error) *LLMError {
	return &LLMError{Kind: LLMFatal, Cause: cause}
}

func (e *LLMError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("%v (%s, %d attempts): %v", ErrLLM, e.Kind, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("%v (%s): %v", ErrLLM, e.Kind, e.Cause)
}

func (e *LLMError) Unwrap() []error { return []error{ErrLLM, e.Cause} }

func (e *LLMError) Transient() bool { return e.Kind == LLMTransient }

// DuplicateError is reported by storage when a record with the same key already exists.
type DuplicateError struct {
	Entity string
	Key    string
	Cause  error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%v: %s with key %q already exists", ErrDuplicate, e.Entity, e.Key)
}

func (e *DuplicateError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDuplicate}
	}
	return []error{ErrDuplicate, e.Cause}
}

// IsTransientLLM reports whether err is an LLMError worth retrying.
func IsTransientLLM(err error) bool {
	var le *LLMError
	return errors.As(err, &le) && le.Transient()
}
