package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Storage errors
	ErrStorage   ErrorCode = "STORAGE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_ERROR"

	// Analysis errors
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrAnalysisFailed ErrorCode = "ANALYSIS_FAILED"

	// Backup errors
	ErrInvalidArchive ErrorCode = "INVALID_ARCHIVE"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
	})
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions for common errors
func NewNotFoundError(message string) *DomainError {
	return NewError(ErrNotFound, message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(ErrInvalidInput, message, nil)
}

func NewInternalError(message string, err error) *DomainError {
	return NewError(ErrInternal, message, err)
}

func NewRecordNotFoundError(id int64) *DomainError {
	return NewError(ErrNotFound, fmt.Sprintf("Question record not found with ID: %d", id), nil)
}

func NewStorageError(message string, err error) *DomainError {
	return NewError(ErrStorage, message, err)
}

func NewMigrationError(version int, err error) *DomainError {
	return NewError(ErrMigration, fmt.Sprintf("Migration to schema version %d failed", version), err)
}

func NewRateLimitedError(err error) *DomainError {
	return NewError(ErrRateLimited, "Analysis service is rate limited", err)
}

func NewAnalysisError(message string, err error) *DomainError {
	return NewError(ErrAnalysisFailed, message, err)
}

func NewInvalidArchiveError(message string) *DomainError {
	return NewError(ErrInvalidArchive, message, nil)
}

// HasCode reports whether err is (or wraps) a DomainError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsNotFound reports whether err is a not-found domain error.
func IsNotFound(err error) bool {
	return HasCode(err, ErrNotFound)
}

// IsRateLimited reports whether err is a transient rate-limit signal from
// the analysis service.
func IsRateLimited(err error) bool {
	return HasCode(err, ErrRateLimited)
}
