package stakes

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func activeCommitment(deadline time.Time, retryUsed bool) Commitment {
	return Commitment{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Topic:       "Rust ownership",
		StakeAmount: 50,
		Deadline:    deadline,
		Status:      CommitmentActive,
		StakeStatus: StakeAtRisk,
		RetryUsed:   retryUsed,
	}
}

func TestResolvePrecedence(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Second)

	cases := []struct {
		name       string
		c          Commitment
		passed     bool
		wantAction StakeAction
		wantStatus CommitmentStatus
		wantStake  StakeStatus
		wantRetry  bool
	}{
		{"deadline beats pass", activeCommitment(past, false), true, ActionBurned, CommitmentExpired, StakeBurned, false},
		{"pass saves", activeCommitment(future, false), true, ActionSaved, CommitmentCompleted, StakeSaved, false},
		{"pass after retry saves", activeCommitment(future, true), true, ActionSaved, CommitmentCompleted, StakeSaved, true},
		{"first fail grants retry", activeCommitment(future, false), false, ActionRetryAllowed, CommitmentActive, StakeAtRisk, true},
		{"second fail burns", activeCommitment(future, true), false, ActionBurned, CommitmentFailed, StakeBurned, true},
	}
	for _, tc := range cases {
		res := Resolve(tc.c, tc.passed, now)
		if res.Action != tc.wantAction {
			t.Fatalf("%s: action want=%s got=%s", tc.name, tc.wantAction, res.Action)
		}
		if res.Commitment.Status != tc.wantStatus || res.Commitment.StakeStatus != tc.wantStake {
			t.Fatalf("%s: state want=%s/%s got=%s/%s", tc.name, tc.wantStatus, tc.wantStake, res.Commitment.Status, res.Commitment.StakeStatus)
		}
		if res.Commitment.RetryUsed != tc.wantRetry {
			t.Fatalf("%s: retry_used want=%v got=%v", tc.name, tc.wantRetry, res.Commitment.RetryUsed)
		}
	}
}

func TestResolveDeadlineIsExclusive(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	res := Resolve(activeCommitment(now, false), true, now)
	if res.Action != ActionSaved {
		t.Fatalf("now == deadline should not expire: got=%s", res.Action)
	}
}

func TestResolveTerminalIsIdempotent(t *testing.T) {
	now := time.Now()
	for _, status := range []CommitmentStatus{CommitmentCompleted, CommitmentFailed, CommitmentExpired} {
		c := activeCommitment(now.Add(-time.Hour), true)
		c.Status = status
		c.StakeStatus = StakeBurned
		if status == CommitmentCompleted {
			c.StakeStatus = StakeSaved
		}
		res := Resolve(c, false, now)
		if res.Changed() || res.Action != ActionNone {
			t.Fatalf("%s: terminal commitment must not change, got=%s", status, res.Action)
		}
		if res.Commitment.Status != c.Status || res.Commitment.StakeStatus != c.StakeStatus {
			t.Fatalf("%s: commitment mutated: %+v", status, res.Commitment)
		}
	}
}
