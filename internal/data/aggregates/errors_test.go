package aggregates

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
	"gorm.io/gorm"
)

func TestMapError_Validation(t *testing.T) {
	err := MapError("op", ValidationError("bad input"))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation code, got %q (%v)", domainagg.CodeOf(err), err)
	}
	err = MapError("op", fmt.Errorf("topic: %w", stakes.ErrInvalidCommitment))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("invalid commitment should map to validation, got %q", domainagg.CodeOf(err))
	}
}

func TestMapError_Structural(t *testing.T) {
	err := MapError("op", StructuralError("exam is incomplete"))
	if !domainagg.IsCode(err, domainagg.CodeStructural) {
		t.Fatalf("expected structural code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_Conflict(t *testing.T) {
	err := MapError("op", ConflictError("stale"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domainagg.CodeOf(err), err)
	}
	err = MapError("op", errors.New("UNIQUE constraint failed: exam_answer.exam_id, exam_answer.question_id"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("sqlite unique violation should be conflict, got %q", domainagg.CodeOf(err))
	}
}

func TestMapError_PgCodes(t *testing.T) {
	cases := map[string]domainagg.ErrorCode{
		"23505": domainagg.CodeConflict,
		"23503": domainagg.CodeValidation,
		"40001": domainagg.CodeRetryable,
		"40P01": domainagg.CodeRetryable,
		"55P03": domainagg.CodeRetryable,
		"22001": domainagg.CodeInternal,
	}
	for code, want := range cases {
		err := MapError("op", &pgconn.PgError{Code: code, Message: "pg"})
		if got := domainagg.CodeOf(err); got != want {
			t.Fatalf("pg %s: want=%s got=%s", code, want, got)
		}
	}
}

func TestMapError_NotFound(t *testing.T) {
	err := MapError("op", gorm.ErrRecordNotFound)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeUnauthorized, "op", "not yours", nil)
	out := MapError("other", in)
	if out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
}
