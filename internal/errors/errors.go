// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrRawFileMissing       = errors.New("raw news file not found")
	ErrProcessedFileMissing = errors.New("processed nlp file not found")
	ErrSymbolIndexMissing   = errors.New("symbol index not available")
	ErrSymbolIndexEmpty     = errors.New("symbol index has no usable rows")
	ErrInvalidDate          = errors.New("invalid date")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrDatabaseError        = errors.New("database error")
	ErrClassifierResponse   = errors.New("malformed classifier response")
	ErrClassifierInput      = errors.New("classifier input rejected")
	ErrNotConfigured        = errors.New("not configured")
)

// FetchError is a recoverable failure of an upstream provider (feed, announcements,
// price source). Callers log it and continue with an empty result.
type FetchError struct {
	Source string
	Target string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("fetch error [%s] %s: %v", e.Source, e.Target, e.Err)
	}
	return fmt.Sprintf("fetch error [%s]: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError.
func NewFetchError(source, target string, err error) *FetchError {
	return &FetchError{
		Source: source,
		Target: target,
		Err:    err,
	}
}

// MalformedInputError marks a single input record that cannot be processed.
// The record is dropped and its siblings are processed normally.
type MalformedInputError struct {
	Record string
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input [%s] field %s: %s", e.Record, e.Field, e.Reason)
}

// NewMalformedInputError creates a new MalformedInputError.
func NewMalformedInputError(record, field, reason string) *MalformedInputError {
	return &MalformedInputError{
		Record: record,
		Field:  field,
		Reason: reason,
	}
}

// ReferenceDataError is fatal for a run: required reference or upstream data is absent.
type ReferenceDataError struct {
	Path string
	Err  error
}

func (e *ReferenceDataError) Error() string {
	return fmt.Sprintf("reference data error [%s]: %v", e.Path, e.Err)
}

func (e *ReferenceDataError) Unwrap() error {
	return e.Err
}

// NewReferenceDataError creates a new ReferenceDataError.
func NewReferenceDataError(path string, err error) *ReferenceDataError {
	return &ReferenceDataError{
		Path: path,
		Err:  err,
	}
}

// ScorerError is a failure of an external sentiment backend.
type ScorerError struct {
	Engine    string
	Operation string
	Err       error
}

func (e *ScorerError) Error() string {
	return fmt.Sprintf("scorer error [%s] %s: %v", e.Engine, e.Operation, e.Err)
}

func (e *ScorerError) Unwrap() error {
	return e.Err
}

// NewScorerError creates a new ScorerError.
func NewScorerError(engine, operation string, err error) *ScorerError {
	return &ScorerError{
		Engine:    engine,
		Operation: operation,
		Err:       err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsFatal reports whether err must abort the run for the day.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ref *ReferenceDataError
	if errors.As(err, &ref) {
		return true
	}
	return errors.Is(err, ErrRawFileMissing) ||
		errors.Is(err, ErrProcessedFileMissing) ||
		errors.Is(err, ErrSymbolIndexMissing) ||
		errors.Is(err, ErrSymbolIndexEmpty)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
