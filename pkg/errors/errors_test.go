package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	err := ErrInternalServer.WithInternal(stdErrors.New("boom"))
	if err.Error() != "Something went wrong, please try again later: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", http.StatusBadRequest)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}
	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}
	if !stdErrors.Is(with, base) {
		t.Fatal("expected copy to match the original by code")
	}
}

func TestFromError(t *testing.T) {
	if out := FromError(ErrNotFound); out != ErrNotFound {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	wrapped := fmt.Errorf("handler: %w", ErrRateLimit)
	if out := FromError(wrapped); out != ErrRateLimit {
		t.Fatal("expected wrapped AppError to be unwrapped")
	}

	out := FromError(stdErrors.New("raw"))
	if out.Code != ErrInternalServer.Code || out.Internal == nil {
		t.Fatalf("expected internal server error with cause, got %+v", out)
	}

	if FromError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestIsDistinguishesCodes(t *testing.T) {
	if stdErrors.Is(ErrInvalidToken, ErrInvalidCredentials) {
		t.Fatal("different codes must not match")
	}
	if stdErrors.Is(ErrInvalidToken, stdErrors.New("auth.invalid_token")) {
		t.Fatal("plain errors must not match")
	}
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("email is required")
	if err.StatusCode != http.StatusBadRequest || err.Code != ErrBadRequest.Code {
		t.Fatalf("unexpected error: %+v", err)
	}
	if err.Message != "email is required" {
		t.Fatalf("unexpected message %q", err.Message)
	}
}
