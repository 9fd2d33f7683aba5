package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test message: %s", "value")

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}
	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}
	expected := "INVALID_INPUT: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrCodeFetch, cause, "download %s", "Newtonsoft.Json")

	if err.Code != ErrCodeFetch {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeFetch)
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	want := "FETCH_FAILED: download Newtonsoft.Json: connection reset"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{"matching code", New(ErrCodeParse, "bad zip"), ErrCodeParse, true},
		{"different code", New(ErrCodeParse, "bad zip"), ErrCodeFetch, false},
		{"wrapped by fmt", fmt.Errorf("outer: %w", New(ErrCodePackageNotFound, "x")), ErrCodePackageNotFound, true},
		{"plain error", errors.New("plain"), ErrCodeInternal, false},
		{"nil error", nil, ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeVersionNotFound, "v")); got != ErrCodeVersionNotFound {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeVersionNotFound)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode(plain) = %v, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	err := Wrap(ErrCodeNetwork, errors.New("timeout"), "nuget.org unreachable")
	if got := UserMessage(err); got != "nuget.org unreachable" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
}

func TestIsNotFound(t *testing.T) {
	for _, code := range []Code{ErrCodeNotFound, ErrCodePackageNotFound, ErrCodeVersionNotFound, ErrCodeFrameworkNotFound, ErrCodeAssemblyNotFound} {
		if !IsNotFound(New(code, "missing")) {
			t.Errorf("IsNotFound(%s) = false", code)
		}
	}
	if IsNotFound(New(ErrCodeParse, "bad")) {
		t.Error("IsNotFound(PARSE_FAILED) = true")
	}
}
