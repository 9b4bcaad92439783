package aggregates

import (
	"context"
	"strings"
	"time"

	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/platform/ctxutil"
	"github.com/yungbote/proofstake-backend/internal/platform/dbctx"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	TxPolicy TxPolicy
	Hooks    Hooks
	CASGuard CASGuard
	// SlowWrite is the commit latency above which a write is logged at warn.
	SlowWrite time.Duration
	// Now stamps writes whose input carries no explicit time.
	Now func() time.Time
}

const defaultSlowWrite = 500 * time.Millisecond

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB, d.TxPolicy)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.SlowWrite <= 0 {
		d.SlowWrite = defaultSlowWrite
	}
	return d
}

func (d BaseDeps) at(t time.Time) time.Time {
	if t.IsZero() {
		if d.Now == nil {
			return time.Now().UTC()
		}
		return d.Now().UTC()
	}
	return t.UTC()
}

// executeWrite runs fn in one transaction under op and reports the outcome to the hooks.
// The returned error always carries a lifecycle error code.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	deps = deps.withDefaults()
	if op = strings.TrimSpace(op); op == "" {
		op = "aggregate.write"
	}

	start := time.Now()
	err := MapError(op, deps.Runner.InTx(ctx, fn))
	elapsed := time.Since(start)

	status := aggregateErrorStatus(err)
	switch domainagg.CodeOf(err) {
	case domainagg.CodeConflict:
		deps.Hooks.IncConflict(op)
	case domainagg.CodeRetryable:
		deps.Hooks.IncRetry(op)
	}
	deps.Hooks.ObserveOperation(op, status, elapsed)

	if deps.Log == nil {
		return err
	}
	fields := append(ctxutil.LogFields(ctx), "op", op, "status", status, "elapsed_ms", elapsed.Milliseconds())
	switch {
	case err != nil:
		deps.Log.Debug("aggregate write failed", append(fields, "error", err)...)
	case elapsed >= deps.SlowWrite:
		deps.Log.Warn("slow aggregate write", fields...)
	}
	return err
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	if code := domainagg.CodeOf(err); code != "" {
		return string(code)
	}
	if code := domainagg.CodeOf(MapError("aggregate.status", err)); code != "" {
		return string(code)
	}
	return "failure"
}
