package aggregates

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// TxRunner runs one lifecycle write as a single transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

// TxPolicy bounds how a write transaction waits on locks and how often a transient
// failure (deadlock, serialization failure, busy SQLite file) is replayed.
type TxPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// LockTimeout is applied with SET LOCAL on Postgres; zero leaves the server default.
	LockTimeout time.Duration
}

func DefaultTxPolicy() TxPolicy {
	return TxPolicy{MaxAttempts: 3, Backoff: 25 * time.Millisecond, LockTimeout: 5 * time.Second}
}

func (p TxPolicy) withDefaults() TxPolicy {
	d := DefaultTxPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = d.Backoff
	}
	return p
}

type gormTxRunner struct {
	db     *gorm.DB
	policy TxPolicy
}

// NewGormTxRunner returns a runner that replays the whole transaction on transient failures.
// fn must only touch the database through dbc so a replay starts from a clean state.
func NewGormTxRunner(db *gorm.DB, policy TxPolicy) TxRunner {
	return &gormTxRunner{db: db, policy: policy.withDefaults()}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	var err error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		err = r.once(ctx, fn)
		if err == nil || !transientTxError(ctx, err) || attempt == r.policy.MaxAttempts {
			return err
		}
		t := time.NewTimer(time.Duration(attempt) * r.policy.Backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}

func (r *gormTxRunner) once(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.policy.LockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.policy.LockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// transientTxError reports whether a failed transaction is worth replaying.
// Caller cancellation is never retried even though it maps to CodeRetryable.
func transientTxError(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return domainagg.IsCode(MapError("aggregate.tx", err), domainagg.CodeRetryable)
}
