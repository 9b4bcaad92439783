package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/proofstake-backend/internal/platform/dbctx"
)

func TestScriptedTxRunnerFollowsScript(t *testing.T) {
	lockErr := errors.New("database is locked")
	r := &ScriptedTxRunner{CommitErrs: []error{lockErr, nil}}
	bodies := 0
	body := func(_ dbctx.Context) error { bodies++; return nil }

	require.ErrorIs(t, r.InTx(context.Background(), body), lockErr)
	require.NoError(t, r.InTx(context.Background(), body))
	require.NoError(t, r.InTx(context.Background(), body))
	require.Equal(t, 3, bodies)

	calls, commits, rollbacks := r.Counts()
	require.Equal(t, 3, calls)
	require.Equal(t, 2, commits)
	require.Equal(t, 1, rollbacks)
}

func TestScriptedTxRunnerBodyErrorRollsBack(t *testing.T) {
	r := &ScriptedTxRunner{}
	bodyErr := errors.New("exam is incomplete")
	require.ErrorIs(t, r.InTx(context.Background(), func(_ dbctx.Context) error { return bodyErr }), bodyErr)

	_, commits, rollbacks := r.Counts()
	require.Equal(t, 0, commits)
	require.Equal(t, 1, rollbacks)
}
