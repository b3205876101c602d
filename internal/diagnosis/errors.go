package diagnosis

import (
	"context"
	"errors"
	"fmt"

	"github.com/pavelanni/aidiag/internal/model"
)

// ErrNotFound means no diagnosis matches the lookup. It is never retryable.
var ErrNotFound = model.ErrNotFound

// Validation error codes.
const (
	CodeRequired       = "required"
	CodeInvalidFormat  = "invalid_format"
	CodeConsent        = "consent_required"
	CodeEmptyResponses = "empty_responses"
	CodeTooLong        = "too_long"
)

// ValidationError is a client-caused rejection of a request.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// CollaboratorError is a failure of an external system. It is retryable.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Timeout reports whether the collaborator call ran out of time.
func (e *CollaboratorError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// QualityGateError is returned when an AI report was requested but no
// narrative that passed the quality check is available.
type QualityGateError struct {
	DiagnosisID string
	Reason      string
}

func (e *QualityGateError) Error() string {
	return fmt.Sprintf("AI report for %s unavailable: %s", e.DiagnosisID, e.Reason)
}

func collaboratorErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &CollaboratorError{Op: op, Err: err}
}
