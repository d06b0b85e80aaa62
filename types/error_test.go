package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true)

	if GetErrorCode(err) != ErrUpstreamError {
		t.Fatalf("expected code %s, got %s", ErrUpstreamError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("handle request: %w", NewSessionNotFoundError("abc"))

	if !IsErrorCode(wrapped, ErrSessionNotFound) {
		t.Fatalf("expected SESSION_NOT_FOUND through wrapping")
	}
	e, ok := AsError(wrapped)
	if !ok {
		t.Fatalf("expected AsError to find *Error")
	}
	if e.HTTPStatus != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", e.HTTPStatus)
	}
	if IsErrorCode(errors.New("plain"), ErrSessionNotFound) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestError_Constructors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    *Error
		code   ErrorCode
		status int
	}{
		{NewInvalidRequestError("user_id is required!"), ErrInvalidRequest, http.StatusBadRequest},
		{NewUnknownUseCaseError("fsi_retail"), ErrUnknownUseCase, http.StatusBadRequest},
		{NewInternalError("store", errors.New("down")), ErrInternalError, http.StatusInternalServerError},
		{NewTimeoutError("run timed out"), ErrTimeout, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		if tc.err.Code != tc.code || tc.err.HTTPStatus != tc.status {
			t.Fatalf("got %s/%d, want %s/%d", tc.err.Code, tc.err.HTTPStatus, tc.code, tc.status)
		}
	}
}
