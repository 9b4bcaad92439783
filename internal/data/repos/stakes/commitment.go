package stakes

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/proofstake-backend/internal/domain"
	"github.com/yungbote/proofstake-backend/internal/platform/dbctx"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

type CommitmentRepo interface {
	Create(dbc dbctx.Context, rows []*types.Commitment) ([]*types.Commitment, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Commitment, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Commitment, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, statuses []types.CommitmentStatus, limit int) ([]*types.Commitment, error)
	ListOverdueActive(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.Commitment, error)
	ListOverdueOwners(dbc dbctx.Context, now time.Time, limit int) ([]uuid.UUID, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type commitmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCommitmentRepo(db *gorm.DB, baseLog *logger.Logger) CommitmentRepo {
	return &commitmentRepo{db: db, log: baseLog.With("repo", "CommitmentRepo")}
}

func (r *commitmentRepo) Create(dbc dbctx.Context, rows []*types.Commitment) ([]*types.Commitment, error) {
	if len(rows) == 0 {
		return []*types.Commitment{}, nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	if err := dbc.DB(r.db).Omit(clause.Associations).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *commitmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Commitment, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var out []*types.Commitment
	if err := dbc.DB(r.db).
		Model(&types.Commitment{}).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *commitmentRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Commitment, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID requires dbc.Tx")
	}
	var out []*types.Commitment
	if err := dbc.DB(nil).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *commitmentRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, statuses []types.CommitmentStatus, limit int) ([]*types.Commitment, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := dbc.DB(r.db).
		Model(&types.Commitment{}).
		Where("user_id = ?", userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out []*types.Commitment
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *commitmentRepo) ListOverdueActive(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.Commitment, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	var out []*types.Commitment
	if err := dbc.DB(r.db).
		Model(&types.Commitment{}).
		Where("user_id = ? AND status = ? AND deadline < ?", userID, types.CommitmentActive, now.UTC()).
		Order("deadline ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *commitmentRepo) ListOverdueOwners(dbc dbctx.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 500
	}
	var out []uuid.UUID
	if err := dbc.DB(r.db).
		Model(&types.Commitment{}).
		Where("status = ? AND deadline < ?", types.CommitmentActive, now.UTC()).
		Distinct("user_id").
		Limit(limit).
		Pluck("user_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *commitmentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	return dbc.DB(r.db).
		Model(&types.Commitment{}).
		Where("id = ?", id).
		Updates(updates).Error
}
