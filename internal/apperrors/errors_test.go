package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNotFound(t *testing.T) {
	t.Parallel()
	err := NotFound("job definition", "helloworld")

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected error to match ErrNotFound")
	}
	if err.Error() != "job definition helloworld not found" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Resource != "job definition" {
		t.Errorf("expected resource 'job definition', got %q", appErr.Resource)
	}
}

func TestTemplate(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("map has no entry for key %q", "replicas")
	err := Template("job-template", cause)

	if !errors.Is(err, ErrTemplate) {
		t.Error("expected error to match ErrTemplate")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Cause != cause {
		t.Error("expected cause to be preserved")
	}
}

func TestParse(t *testing.T) {
	t.Parallel()
	err := Parse("broken-spec", fmt.Errorf("yaml: line 3: mapping values are not allowed"))

	if !errors.Is(err, ErrParse) {
		t.Error("expected error to match ErrParse")
	}
	if errors.Is(err, ErrTemplate) {
		t.Error("parse errors must not classify as template errors")
	}
}

func TestConflict(t *testing.T) {
	t.Parallel()
	err := Conflict("job", "pi-abc123", "job already exists")

	if !errors.Is(err, ErrConflict) {
		t.Error("expected error to match ErrConflict")
	}
	if err.Error() != "job pi-abc123: job already exists" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestInternal(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("connection refused")
	err := Internal("kube.listJobs", cause)

	if !errors.Is(err, ErrInternal) {
		t.Error("expected error to match ErrInternal")
	}
	if err.Error() != "kube.listJobs: connection refused" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Op != "kube.listJobs" {
		t.Errorf("expected op 'kube.listJobs', got %q", appErr.Op)
	}
	if appErr.Cause != cause {
		t.Error("expected cause to be preserved")
	}
}

func TestContainerCreating(t *testing.T) {
	t.Parallel()
	err := ContainerCreating("pi-abc-x7k2", "main")

	if !errors.Is(err, ErrContainerCreating) {
		t.Error("expected error to match ErrContainerCreating")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("container-creating must not classify as not found")
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", Validation("name", "required"), http.StatusBadRequest},
		{"template", Template("t", fmt.Errorf("missing key")), http.StatusBadRequest},
		{"parse", Parse("t", fmt.Errorf("bad yaml")), http.StatusBadRequest},
		{"not found", NotFound("job", "abc"), http.StatusNotFound},
		{"conflict", Conflict("job", "abc", "exists"), http.StatusConflict},
		{"internal", Internal("op", fmt.Errorf("fail")), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("wrap: %w", NotFound("job", "abc")), http.StatusNotFound},
		{"unknown error", fmt.Errorf("unknown"), http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := HTTPStatus(tt.err)
			if got != tt.expected {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestErrorsIsWithWrapping(t *testing.T) {
	t.Parallel()
	original := NotFound("job definition", "missing")
	wrapped := fmt.Errorf("manager error: %w", original)
	doubleWrapped := fmt.Errorf("handler error: %w", wrapped)

	if !errors.Is(doubleWrapped, ErrNotFound) {
		t.Error("expected errors.Is to find ErrNotFound through multiple wraps")
	}
}
