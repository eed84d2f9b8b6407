package generator

import (
	"context"
	"errors"
	"fmt"

	"illustrator/pkg/backend/llmerrors"
)

// Public error codes.
const (
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeGenerationFailed    = "GENERATION_FAILED"
	CodeTemplateNotFound    = "TEMPLATE_NOT_FOUND"
	CodeInternal            = "INTERNAL_ERROR"
)

// RequestConstraintError rejects a request before any backend call.
type RequestConstraintError struct {
	Reason string
}

func (e *RequestConstraintError) Error() string {
	return e.Reason
}

// BackendInvocationError is a failed backend call.
type BackendInvocationError struct {
	Attempt int
	Err     error
}

func (e *BackendInvocationError) Error() string {
	return fmt.Sprintf("backend call failed on attempt %d: %v", e.Attempt+1, e.Err)
}

func (e *BackendInvocationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may resubmit the request.
func (e *BackendInvocationError) Retryable() bool {
	return llmerrors.Retryable(e.Err)
}

// MalformedArtifactError is a synthesized artifact that stayed invalid after repair.
type MalformedArtifactError struct {
	Err error
}

func (e *MalformedArtifactError) Error() string {
	return fmt.Sprintf("malformed artifact: %v", e.Err)
}

func (e *MalformedArtifactError) Unwrap() error {
	return e.Err
}

// TemplateNotFoundError is a missing skeleton.
type TemplateNotFoundError struct {
	Type string
	Size int
	Err  error
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("no template for %s with %d items", e.Type, e.Size)
}

func (e *TemplateNotFoundError) Unwrap() error {
	return e.Err
}

// ToErrorInfo maps an error to the public envelope.
func ToErrorInfo(err error) ErrorInfo {
	var (
		rce *RequestConstraintError
		bie *BackendInvocationError
		mae *MalformedArtifactError
		tnf *TemplateNotFoundError
	)
	switch {
	case errors.As(err, &rce):
		return ErrorInfo{Code: CodeConstraintViolation, Message: rce.Reason, Retryable: false}
	case errors.As(err, &tnf):
		return ErrorInfo{Code: CodeTemplateNotFound, Message: tnf.Error(), Retryable: false}
	case errors.As(err, &mae):
		return ErrorInfo{Code: CodeGenerationFailed, Message: mae.Error(), Retryable: true}
	case errors.As(err, &bie):
		return ErrorInfo{
			Code:      CodeGenerationFailed,
			Message:   fmt.Sprintf("Generation failed: backend %s error", llmerrors.TypeOf(bie.Err)),
			Retryable: bie.Retryable(),
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorInfo{Code: CodeGenerationFailed, Message: "Generation cancelled: " + err.Error(), Retryable: true}
	case err == nil:
		return ErrorInfo{Code: CodeInternal, Message: "unknown error", Retryable: true}
	default:
		return ErrorInfo{Code: CodeInternal, Message: err.Error(), Retryable: true}
	}
}
