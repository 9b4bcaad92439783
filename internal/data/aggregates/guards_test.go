package aggregates

import (
	"testing"

	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
)

func TestRequireStatusAllowed(t *testing.T) {
	if err := RequireStatusAllowed("in_progress", "in_progress"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	err := RequireStatusAllowed("graded", "submitted", "grading_failed")
	if err == nil {
		t.Fatalf("expected structural error")
	}
	if !domainagg.IsCode(MapError("op", err), domainagg.CodeStructural) {
		t.Fatalf("want structural got=%v", MapError("op", err))
	}
}

func TestRequireCASSuccess(t *testing.T) {
	if err := RequireCASSuccess(true, "ok"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := RequireCASSuccess(false, "stale"); err == nil {
		t.Fatalf("expected conflict error")
	}
}
