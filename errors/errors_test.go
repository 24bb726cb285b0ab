package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"testing"
)

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeSourceFailed, "boom", http.StatusBadGateway)
	if !err.Retryable {
		t.Error("SOURCE_FAILED should be retryable")
	}
	err = New(ErrCodeInvalidInput, "bad", http.StatusBadRequest)
	if err.Retryable {
		t.Error("INVALID_INPUT should not be retryable")
	}
}

func TestSourceFailed_CarriesCause(t *testing.T) {
	err := SourceFailed("gps", io.ErrUnexpectedEOF)
	if err.Code != ErrCodeSourceFailed {
		t.Errorf("expected SOURCE_FAILED, got %s", err.Code)
	}
	if !stderrors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected errors.Is to reach the cause")
	}
	if err.Details["source"] != "gps" {
		t.Errorf("expected source detail, got %v", err.Details)
	}
}

func TestInvalidInput_Field(t *testing.T) {
	err := InvalidInput("limit", "must not be negative")
	if err.Details["field"] != "limit" {
		t.Errorf("expected field=limit, got %v", err.Details["field"])
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", err.HTTPStatus)
	}

	noField := InvalidInput("", "x")
	if _, ok := noField.Details["field"]; ok {
		t.Error("empty field should not be recorded")
	}
}

func TestAppError_IsMatchesCode(t *testing.T) {
	wrapped := fmt.Errorf("next: %w", ErrStreamClosed)
	if !stderrors.Is(wrapped, ErrStreamClosed) {
		t.Error("expected wrapped ErrStreamClosed to match")
	}
	if stderrors.Is(Timeout("pop"), ErrStreamClosed) {
		t.Error("different codes must not match")
	}
}

func TestAppError_WithDetail_NilMap(t *testing.T) {
	err := &AppError{Code: ErrCodeInternal}
	err.WithDetail("k", "v")
	if err.Details["k"] != "v" {
		t.Errorf("expected detail to be set, got %v", err.Details)
	}
}

func TestAppError_Error_Format(t *testing.T) {
	err := KeyNotFound("battery/voltage")
	want := "NOT_FOUND: record has no field battery/voltage"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	withCause := Storage("write", io.ErrShortWrite)
	if withCause.Error() != "STORAGE_ERROR: storage write failed (cause: short write)" {
		t.Errorf("unexpected message %q", withCause.Error())
	}
}

func TestErrorCode_IsRetryableCode_Table(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeSourceFailed, true},
		{ErrCodeConnectionFailed, true},
		{ErrCodeTimeout, true},
		{ErrCodeStorage, true},
		{ErrCodeInvalidInput, false},
		{ErrCodeStreamClosed, false},
		{ErrCodeInternal, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			if got := IsRetryableCode(tc.code); got != tc.want {
				t.Errorf("IsRetryableCode(%s) = %v, want %v", tc.code, got, tc.want)
			}
		})
	}
}

func TestAppError_ToResponse(t *testing.T) {
	resp := InvalidFormat("rate", "duration").ToResponse()
	if resp.Code != ErrCodeInvalidFormat {
		t.Errorf("expected INVALID_FORMAT, got %s", resp.Code)
	}
	if resp.Details["field"] != "rate" {
		t.Errorf("expected field detail, got %v", resp.Details)
	}
}

func TestRespond(t *testing.T) {
	status, resp := Respond(fmt.Errorf("push: %w", ErrStreamClosed))
	if status != http.StatusGone || resp.Code != ErrCodeStreamClosed {
		t.Errorf("got %d %s, want 410 STREAM_CLOSED", status, resp.Code)
	}

	status, resp = Respond(fmt.Errorf("disk on fire"))
	if status != http.StatusInternalServerError || resp.Code != ErrCodeInternal {
		t.Errorf("got %d %s, want 500 INTERNAL_ERROR", status, resp.Code)
	}
	if resp.Message == "disk on fire" {
		t.Error("internal error text leaked into the response")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}

	orig := KeyNotFound("mode")
	if Wrap(fmt.Errorf("outer: %w", orig)) != orig {
		t.Error("Wrap should unwrap to the original AppError")
	}

	plain := fmt.Errorf("something broke")
	got := Wrap(plain)
	if got.Code != ErrCodeInternal || got.Cause != plain {
		t.Errorf("expected INTERNAL_ERROR wrapping the plain error, got %+v", got)
	}
}

func TestAsAppError(t *testing.T) {
	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("expected AsAppError to fail for plain errors")
	}
	if !IsAppError(fmt.Errorf("x: %w", Timeout("read"))) {
		t.Error("expected IsAppError through wrapping")
	}
}
