package stakes

import "time"

type StakeAction string

const (
	ActionSaved        StakeAction = "saved"
	ActionBurned       StakeAction = "burned"
	ActionRetryAllowed StakeAction = "retry_allowed"
	// ActionNone is returned for commitments that were already terminal.
	ActionNone StakeAction = "none"
)

type ResolutionReason string

const (
	ReasonDeadlinePassed  ResolutionReason = "deadline_passed"
	ReasonExamPassed      ResolutionReason = "exam_passed"
	ReasonRetryGranted    ResolutionReason = "retry_granted"
	ReasonRetryExhausted  ResolutionReason = "retry_exhausted"
	ReasonAlreadyTerminal ResolutionReason = "already_terminal"
)

type Resolution struct {
	Commitment Commitment
	Action     StakeAction
	Reason     ResolutionReason
}

// Changed reports whether the resolution mutates the stored commitment.
func (r Resolution) Changed() bool {
	return r.Action != ActionNone
}

// Resolve applies the stake rules to c at time now. Exactly one rule fires, in order:
// overdue active commitments expire and burn; a passed exam completes and saves;
// an unused retry is granted; otherwise the commitment fails and burns.
// Terminal commitments are returned unchanged with ActionNone.
func Resolve(c Commitment, examPassed bool, now time.Time) Resolution {
	if c.Status.Terminal() {
		return Resolution{Commitment: c, Action: ActionNone, Reason: ReasonAlreadyTerminal}
	}
	resolvedAt := now.UTC()
	switch {
	case c.Status == CommitmentActive && c.Overdue(now):
		c.Status = CommitmentExpired
		c.StakeStatus = StakeBurned
		c.ResolvedAt = &resolvedAt
		return Resolution{Commitment: c, Action: ActionBurned, Reason: ReasonDeadlinePassed}
	case examPassed:
		c.Status = CommitmentCompleted
		c.StakeStatus = StakeSaved
		c.ResolvedAt = &resolvedAt
		return Resolution{Commitment: c, Action: ActionSaved, Reason: ReasonExamPassed}
	case !c.RetryUsed:
		c.RetryUsed = true
		return Resolution{Commitment: c, Action: ActionRetryAllowed, Reason: ReasonRetryGranted}
	default:
		c.Status = CommitmentFailed
		c.StakeStatus = StakeBurned
		c.ResolvedAt = &resolvedAt
		return Resolution{Commitment: c, Action: ActionBurned, Reason: ReasonRetryExhausted}
	}
}
