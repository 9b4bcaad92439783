package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/proofstake-backend/internal/data/aggregates"
	"github.com/yungbote/proofstake-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// ScriptedTxRunner fails the Nth transaction at commit time with CommitErrs[N-1]; a nil entry
// or a call past the end of the script commits. With DB set the body runs in a real
// transaction, so a scripted failure rolls back every write the body made.
type ScriptedTxRunner struct {
	DB         *gorm.DB
	CommitErrs []error

	mu        sync.Mutex
	calls     int
	commits   int
	rollbacks int
}

var _ aggregates.TxRunner = (*ScriptedTxRunner)(nil)

func (r *ScriptedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.calls++
	var commitErr error
	if r.calls <= len(r.CommitErrs) {
		commitErr = r.CommitErrs[r.calls-1]
	}
	r.mu.Unlock()

	body := func(dbc dbctx.Context) error {
		if fn != nil {
			if err := fn(dbc); err != nil {
				return err
			}
		}
		return commitErr
	}
	var err error
	if r.DB != nil {
		err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return body(dbctx.Context{Ctx: ctx, Tx: tx})
		})
	} else {
		err = body(dbctx.Context{Ctx: ctx})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.rollbacks++
	} else {
		r.commits++
	}
	return err
}

// Counts returns calls, commits and rollbacks so far.
func (r *ScriptedTxRunner) Counts() (calls, commits, rollbacks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.commits, r.rollbacks
}
