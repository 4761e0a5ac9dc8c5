// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrTemplate   = errors.New("template error")
	ErrParse      = errors.New("parse error")
	ErrConflict   = errors.New("conflict")
	ErrInternal   = errors.New("internal error")

	// ErrContainerCreating marks a transient pod-log fetch failure while the
	// container has not started yet. Callers substitute a placeholder line.
	ErrContainerCreating = errors.New("container creating")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Resource string // For not found/conflict (e.g., "job", "job definition")
	Field    string // For validation and template errors (e.g., "specPath")
	Op       string // Operation that failed (e.g., "kube.patchJob")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, name string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, name),
		Resource: resource,
	}
}

// Template creates an error for a template that cannot be rendered,
// typically because a required variable was not supplied.
func Template(name string, cause error) error {
	return &Error{
		Sentinel: ErrTemplate,
		Message:  fmt.Sprintf("rendering template %s: %v", name, cause),
		Resource: name,
		Cause:    cause,
	}
}

// Parse creates an error for a malformed spec document.
func Parse(name string, cause error) error {
	return &Error{
		Sentinel: ErrParse,
		Message:  fmt.Sprintf("parsing spec %s: %v", name, cause),
		Resource: name,
		Cause:    cause,
	}
}

// Conflict creates a conflict error for a resource, e.g. a job name that
// already exists in the cluster.
func Conflict(resource, name, reason string) error {
	return &Error{
		Sentinel: ErrConflict,
		Message:  fmt.Sprintf("%s %s: %s", resource, name, reason),
		Resource: resource,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// ContainerCreating creates the transient error returned while a container
// is still being created and has no logs yet.
func ContainerCreating(pod, container string) error {
	return &Error{
		Sentinel: ErrContainerCreating,
		Message:  fmt.Sprintf("container %s in pod %s is waiting to start", container, pod),
		Resource: "pod",
	}
}
