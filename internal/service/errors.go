package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vendaflow/lead-api/internal/validation"
)

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed is returned when a lead fails field validation;
	// no persistence has occurred
	ErrValidationFailed = errors.New("validation failed")

	// ErrDuplicateLead is returned when a lead with the same email exists
	ErrDuplicateLead = errors.New("lead with this email already exists")

	// ErrFileRejected is returned when an upload fails file-level checks
	// (type, size, extension) before parsing
	ErrFileRejected = errors.New("file rejected")

	// ErrEmptyDataset is returned when a parsed file contains no data rows
	ErrEmptyDataset = errors.New("no data found")

	// ErrErrorRateExceeded is returned when more than half of the rows in
	// a batch fail validation and the whole run is aborted
	ErrErrorRateExceeded = errors.New("error rate exceeded")
)

// ValidationError carries the field-level detail of a rejected record.
// It unwraps to ErrValidationFailed.
type ValidationError struct {
	Fields []validation.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// ErrorRateError reports the computed rate of an aborted batch.
// It unwraps to ErrErrorRateExceeded.
type ErrorRateError struct {
	Rate     float64
	Total    int
	Rejected int
}

func (e *ErrorRateError) Error() string {
	return fmt.Sprintf("error rate %.0f%% exceeds 50%% (%d of %d rows invalid), import aborted", e.Rate*100, e.Rejected, e.Total)
}

func (e *ErrorRateError) Unwrap() error {
	return ErrErrorRateExceeded
}
