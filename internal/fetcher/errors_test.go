package fetcher

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		wantType  ErrorType
		retryable bool
	}{
		{400, ErrorTypeClient, false},
		{404, ErrorTypeClient, false},
		{429, ErrorTypeRateLimit, true},
		{500, ErrorTypeServer, true},
		{503, ErrorTypeServer, true},
		{302, ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := ClassifyHTTPError(tt.status)
			if err.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", err.Type, tt.wantType)
			}
			if err.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", err.Retryable, tt.retryable)
			}
			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.status)
			}
		})
	}
}

func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *FetchError
		want string
	}{
		{"with status", NewServerError(502), "server error (status 502): server returned an error"},
		{"structure", NewStructureError(`table "resultado" not found`), `structure error: table "resultado" not found`},
		{"with cause", NewNetworkError(errors.New("connection refused")), "network error: network request failed: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: lookup failed")
	err := fmt.Errorf("load table: %w", NewNetworkError(cause))

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if got := TypeOf(err); got != ErrorTypeNetwork {
		t.Errorf("TypeOf() = %q, want %q", got, ErrorTypeNetwork)
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false, want true")
	}
}

func TestHelpers_NonFetchError(t *testing.T) {
	err := errors.New("plain")

	if IsRetryable(err) {
		t.Error("IsRetryable(plain) = true, want false")
	}
	if got := StatusCode(err); got != 0 {
		t.Errorf("StatusCode(plain) = %d, want 0", got)
	}
	if got := TypeOf(err); got != ErrorTypeUnknown {
		t.Errorf("TypeOf(plain) = %q, want %q", got, ErrorTypeUnknown)
	}
}

func TestStructureError_NotRetryable(t *testing.T) {
	err := NewStructureError("missing table")
	if IsRetryable(err) {
		t.Error("structure errors must not be retryable")
	}
	if err.IsHTTP() {
		t.Error("IsHTTP() = true for structure error, want false")
	}
}
