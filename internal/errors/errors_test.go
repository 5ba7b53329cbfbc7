package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Is(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		target error
	}{
		{"validation", Validation("Size must be greater than 0"), ErrValidation},
		{"upstream", Upstream("Failed to get positions", 500, "{}"), ErrUpstream},
		{"missing credentials", MissingCredentials("api_key"), ErrMissingCredentials},
		{"wrapped transport", fmt.Errorf("calling broker: %w", Transport("Request failed", errors.New("dial tcp"))), ErrTransport},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.target) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tc.err, tc.target)
			}
		})
	}
}

func TestAppError_ErrorIncludesCause(t *testing.T) {
	err := Transport("Request failed", errors.New("connection refused"))
	if got, want := err.Error(), "Request failed: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrTransport) {
		t.Error("errors.Is(err, ErrTransport) = false, want true")
	}
}

func TestStatusCode(t *testing.T) {
	if got := StatusCode(Upstream("Failed to get positions", 503, "")); got != 503 {
		t.Errorf("StatusCode() = %d, want 503", got)
	}
	if got := StatusCode(Validation("bad")); got != 0 {
		t.Errorf("StatusCode() = %d, want 0", got)
	}
}

func TestEnvelope(t *testing.T) {
	env := Envelope(Upstream("API request failed", 502, "bad gateway"))

	if env["error"] != "API request failed: 502" {
		t.Errorf("error = %v, want %q", env["error"], "API request failed: 502")
	}
	if env["status_code"] != 502 {
		t.Errorf("status_code = %v, want 502", env["status_code"])
	}
	if env["details"] != "bad gateway" {
		t.Errorf("details = %v, want %q", env["details"], "bad gateway")
	}

	plain := Envelope(errors.New("boom"))
	if len(plain) != 1 || plain["error"] != "boom" {
		t.Errorf("Envelope(plain) = %v, want only the error key", plain)
	}

	if Envelope(nil) != nil {
		t.Error("Envelope(nil) should be nil")
	}
}

func TestEnvelope_DetailsCannotOverrideError(t *testing.T) {
	err := New(ErrValidation, "Invalid epic").WithDetails(map[string]any{"error": "other", "field": "epic"})
	env := Envelope(err)

	if env["error"] != "Invalid epic" {
		t.Errorf("error = %v, want %q", env["error"], "Invalid epic")
	}
	if env["field"] != "epic" {
		t.Errorf("field = %v, want %q", env["field"], "epic")
	}
}
