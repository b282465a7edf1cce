package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		retryable bool
		soft      bool
	}{
		{code: CodeNetwork, retryable: true, soft: true},
		{code: CodeTimeout, retryable: true, soft: true},
		{code: CodeUnauthorized, soft: true},
		{code: CodeValidation},
		{code: CodeAlreadyExists, soft: true},
		{code: CodeStorageQuota, soft: true},
		{code: CodeParse, soft: true},
		{code: CodeDependency, retryable: true, soft: true},
		{code: CodeInternal},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.Soft != tt.soft {
			t.Fatalf("code %s expected soft %v got %v", tt.code, tt.soft, meta.Soft)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s missing public message", tt.code)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta != MetadataFor(CodeInternal) {
		t.Fatalf("expected internal metadata, got %+v", meta)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing product")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing product" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeNetwork, cause, "fetch cart")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeNetwork {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestCodeOfClassifiesUntypedErrors(t *testing.T) {
	if got := CodeOf(nil); got != "" {
		t.Fatalf("nil error should have empty code, got %s", got)
	}
	if got := CodeOf(fmt.Errorf("call: %w", context.DeadlineExceeded)); got != CodeTimeout {
		t.Fatalf("expected timeout, got %s", got)
	}
	if got := CodeOf(stdErrors.New("boom")); got != CodeInternal {
		t.Fatalf("expected internal, got %s", got)
	}
	wrapped := fmt.Errorf("outer: %w", New(CodeUnauthorized, "expired"))
	if !Is(wrapped, CodeUnauthorized) {
		t.Fatalf("expected wrapped unauthorized to be detected")
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status  int
		message string
		want    Code
	}{
		{status: http.StatusUnauthorized, want: CodeUnauthorized},
		{status: http.StatusForbidden, want: CodeUnauthorized},
		{status: http.StatusBadRequest, message: "invalid color variant", want: CodeValidation},
		{status: http.StatusBadRequest, message: "Product already in wishlist", want: CodeAlreadyExists},
		{status: http.StatusConflict, want: CodeAlreadyExists},
		{status: http.StatusNotFound, want: CodeNotFound},
		{status: http.StatusGatewayTimeout, want: CodeTimeout},
		{status: http.StatusInternalServerError, want: CodeDependency},
	}

	for _, tt := range tests {
		got := FromHTTPStatus(tt.status, tt.message)
		if got.Code() != tt.want {
			t.Fatalf("status %d (%q): expected %s got %s", tt.status, tt.message, tt.want, got.Code())
		}
		if got.Message() == "" {
			t.Fatalf("status %d: expected a message", tt.status)
		}
	}
}

func TestFromTransport(t *testing.T) {
	if got := FromTransport(context.DeadlineExceeded, "fetch"); got.Code() != CodeTimeout {
		t.Fatalf("expected timeout, got %s", got.Code())
	}
	if got := FromTransport(stdErrors.New("connection refused"), "fetch"); got.Code() != CodeNetwork {
		t.Fatalf("expected network, got %s", got.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeNotFound, "no entry")
	if got := As(err); got == nil || got.Code() != CodeNotFound {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpIncludesStatusAndChain(t *testing.T) {
	err := fmt.Errorf("remove item: %w", FromHTTPStatus(http.StatusInternalServerError, "boom"))
	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", dump.Code)
	}
	if dump.Status != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", dump.Status)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", dump.Chain)
	}
}
