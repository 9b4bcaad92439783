package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
	"gorm.io/gorm"
)

var (
	// ErrValidation marks caller input the lifecycle rejects.
	ErrValidation = errors.New("aggregate validation")
	// ErrStructural marks an illegal transition or an incomplete exam.
	ErrStructural = errors.New("aggregate structural violation")
	// ErrConflict marks a lost compare-and-set.
	ErrConflict = errors.New("aggregate conflict")
	// ErrRetryable marks a transient storage failure.
	ErrRetryable = errors.New("aggregate retryable")
)

func ValidationError(msg string) error { return tagged(ErrValidation, msg) }
func StructuralError(msg string) error { return tagged(ErrStructural, msg) }
func ConflictError(msg string) error   { return tagged(ErrConflict, msg) }
func RetryableError(msg string) error  { return tagged(ErrRetryable, msg) }

func tagged(sentinel error, msg string) error {
	return errors.Join(sentinel, errors.New(strings.TrimSpace(msg)))
}

var sentinelCodes = []struct {
	target error
	code   domainagg.ErrorCode
}{
	{ErrValidation, domainagg.CodeValidation},
	{stakes.ErrInvalidCommitment, domainagg.CodeValidation},
	{ErrStructural, domainagg.CodeStructural},
	{ErrConflict, domainagg.CodeConflict},
	{ErrRetryable, domainagg.CodeRetryable},
	{gorm.ErrRecordNotFound, domainagg.CodeNotFound},
	{context.Canceled, domainagg.CodeRetryable},
	{context.DeadlineExceeded, domainagg.CodeRetryable},
}

// SQLSTATE classes the lifecycle tables can raise.
var pgStateCodes = map[string]domainagg.ErrorCode{
	"23505": domainagg.CodeConflict,   // unique_violation
	"23503": domainagg.CodeValidation, // foreign_key_violation
	"40001": domainagg.CodeRetryable,  // serialization_failure
	"40P01": domainagg.CodeRetryable,  // deadlock_detected
	"55P03": domainagg.CodeRetryable,  // lock_not_available
}

// Drivers without typed errors (sqlite) only expose text.
var messageCodes = []struct {
	fragment string
	code     domainagg.ErrorCode
}{
	{"duplicate key", domainagg.CodeConflict},
	{"unique constraint failed", domainagg.CodeConflict},
	{"already exists", domainagg.CodeConflict},
	{"deadlock", domainagg.CodeRetryable},
	{"serialization", domainagg.CodeRetryable},
	{"database is locked", domainagg.CodeRetryable},
	{"timeout", domainagg.CodeRetryable},
	{"temporar", domainagg.CodeRetryable},
}

// MapError classifies a storage or domain failure into a lifecycle error code.
// Errors that already carry a code pass through untouched.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded *domainagg.Error
	if errors.As(err, &coded) {
		return err
	}
	return domainagg.Wrap(classify(err), op, err)
}

func classify(err error) domainagg.ErrorCode {
	for _, s := range sentinelCodes {
		if errors.Is(err, s.target) {
			return s.code
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := pgStateCodes[strings.TrimSpace(pgErr.Code)]; ok {
			return code
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range messageCodes {
		if strings.Contains(msg, m.fragment) {
			return m.code
		}
	}
	return domainagg.CodeInternal
}
