package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

type StakeResolver interface {
	// Resolve is pure; it never touches storage.
	Resolve(c stakes.Commitment, examPassed bool, now time.Time) stakes.Resolution
	// SweepExpired expires and burns the owner's overdue active commitments.
	SweepExpired(ctx context.Context, userID uuid.UUID, now time.Time) (domainagg.ExpireOverdueResult, error)
}

type stakeResolver struct {
	log       *logger.Logger
	lifecycle domainagg.LifecycleAggregate
}

func NewStakeResolver(baseLog *logger.Logger, lifecycle domainagg.LifecycleAggregate) StakeResolver {
	return &stakeResolver{
		log:       baseLog.With("service", "StakeResolver"),
		lifecycle: lifecycle,
	}
}

func (r *stakeResolver) Resolve(c stakes.Commitment, examPassed bool, now time.Time) stakes.Resolution {
	return stakes.Resolve(c, examPassed, now)
}

func (r *stakeResolver) SweepExpired(ctx context.Context, userID uuid.UUID, now time.Time) (domainagg.ExpireOverdueResult, error) {
	const op = "Services.StakeResolver.SweepExpired"
	if r.lifecycle == nil {
		return domainagg.ExpireOverdueResult{}, domainagg.NewError(domainagg.CodeInternal, op, "lifecycle aggregate not configured", nil)
	}
	res, err := r.lifecycle.ExpireOverdue(ctx, domainagg.ExpireOverdueInput{UserID: userID, Now: now})
	if err != nil {
		return res, err
	}
	if len(res.Expired) > 0 || res.Skipped > 0 {
		r.log.Info("expired overdue commitments", "user_id", userID, "expired", len(res.Expired), "skipped", res.Skipped)
	}
	return res, nil
}
