package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppErrorError(t *testing.T) {
	e := New(ErrCodeReportNotFound, "report not found")
	want := "[REP_001] report not found"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	withDetail := e.WithDetail("patient=RSSMRA80A01H501U")
	want = "[REP_001] report not found: patient=RSSMRA80A01H501U"
	if withDetail.Error() != want {
		t.Errorf("Error() with detail = %q, want %q", withDetail.Error(), want)
	}
	if e.Detail != "" {
		t.Error("WithDetail must not mutate the receiver")
	}
}

func TestWrapNil(t *testing.T) {
	if got := Wrap(nil, CodeInternal, "should be nil"); got != nil {
		t.Errorf("Wrap(nil, ...) = %v, want nil", got)
	}
}

func TestWrapPreservesChain(t *testing.T) {
	base := fmt.Errorf("connection refused")
	wrapped := Wrap(base, ErrCodeDatabaseError, "database unreachable")

	if !errors.Is(wrapped, base) {
		t.Error("errors.Is should find the wrapped base error")
	}
	if wrapped.Unwrap() != base {
		t.Error("Unwrap should return the cause")
	}
}

func TestWrapUnknownKeepsOriginalCode(t *testing.T) {
	inner := New(ErrCodeReportNotFound, "missing")
	outer := Wrap(inner, CodeUnknown, "lookup failed")
	if outer.Code != ErrCodeReportNotFound {
		t.Errorf("Code = %s, want %s", outer.Code, ErrCodeReportNotFound)
	}
}

func TestIsCode(t *testing.T) {
	inner := New(ErrCodeAIUnavailable, "ollama down")
	outer := fmt.Errorf("comparison step: %w", inner)

	if !IsCode(outer, ErrCodeAIUnavailable) {
		t.Error("IsCode should traverse wrapped errors")
	}
	if IsCode(outer, ErrCodeDatabaseError) {
		t.Error("IsCode should not match unrelated codes")
	}
	if IsCode(nil, ErrCodeAIUnavailable) {
		t.Error("IsCode(nil) should be false")
	}
}

func TestIsNotFound(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"generic not found", NotFound("gone"), true},
		{"report not found", New(ErrCodeReportNotFound, "gone"), true},
		{"internal", Internal("boom"), false},
		{"plain error", errors.New("plain"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNotFound(tc.err); got != tc.want {
				t.Errorf("IsNotFound = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(nil) != CodeOK {
		t.Error("GetCode(nil) should be CodeOK")
	}
	if GetCode(errors.New("plain")) != CodeUnknown {
		t.Error("GetCode(plain) should be CodeUnknown")
	}
	if GetCode(New(ErrCodeFiscalCodeInvalid, "bad cf")) != ErrCodeFiscalCodeInvalid {
		t.Error("GetCode should extract the AppError code")
	}
}

func TestHTTPStatus(t *testing.T) {
	if got := ErrCodeReportNotFound.HTTPStatus(); got != 404 {
		t.Errorf("HTTPStatus(REP_001) = %d, want 404", got)
	}
	if got := ErrorCode("NO_SUCH_CODE").HTTPStatus(); got != 500 {
		t.Errorf("HTTPStatus(unknown) = %d, want 500", got)
	}
}
