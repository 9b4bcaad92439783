package aggregates

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOfFollowsWrapping(t *testing.T) {
	base := NewError(CodeMaxRetriesExceeded, "exam.generate", "3 attempts", errors.New("rate limited"))
	wrapped := fmt.Errorf("generate exam: %w", base)
	if got := CodeOf(wrapped); got != CodeMaxRetriesExceeded {
		t.Fatalf("CodeOf: want=%s got=%s", CodeMaxRetriesExceeded, got)
	}
	if !IsCode(wrapped, CodeMaxRetriesExceeded) {
		t.Fatalf("IsCode should see through fmt wrapping")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatalf("plain error should carry no code")
	}
}

func TestOutermostCodeWins(t *testing.T) {
	inner := NewError(CodeTransport, "llm.complete", "timeout", nil)
	outer := NewError(CodeMaxRetriesExceeded, "exam.grade", "exhausted", inner)
	if got := CodeOf(outer); got != CodeMaxRetriesExceeded {
		t.Fatalf("CodeOf: want=%s got=%s", CodeMaxRetriesExceeded, got)
	}
	var last *Error
	if !errors.As(errors.Unwrap(outer), &last) || last.Code != CodeTransport {
		t.Fatalf("last cause should be preserved: %v", errors.Unwrap(outer))
	}
}

func TestRetryableCodes(t *testing.T) {
	for code, want := range map[ErrorCode]bool{
		CodeInvalidOutput:      true,
		CodeTransport:          true,
		CodeStructural:         false,
		CodeUnauthorized:       false,
		CodeMaxRetriesExceeded: false,
	} {
		if got := code.Retryable(); got != want {
			t.Fatalf("%s.Retryable(): want=%v got=%v", code, want, got)
		}
	}
}

func TestErrorString(t *testing.T) {
	err := Structural("exam.submit", "exam is incomplete")
	if got := err.Error(); got != "exam.submit: exam is incomplete (structural)" {
		t.Fatalf("Error(): got=%q", got)
	}
}
