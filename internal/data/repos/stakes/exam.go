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

type ExamRepo interface {
	Create(dbc dbctx.Context, exam *types.Exam, questions []types.Question) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Exam, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Exam, error)
	ListByCommitment(dbc dbctx.Context, commitmentID uuid.UUID) ([]*types.Exam, error)
	CountUnresolved(dbc dbctx.Context, commitmentID uuid.UUID) (int64, error)
	ListQuestions(dbc dbctx.Context, examID uuid.UUID) ([]types.Question, error)
	GetQuestion(dbc dbctx.Context, examID, questionID uuid.UUID) (*types.Question, error)
}

type examRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExamRepo(db *gorm.DB, baseLog *logger.Logger) ExamRepo {
	return &examRepo{db: db, log: baseLog.With("repo", "ExamRepo")}
}

func (r *examRepo) Create(dbc dbctx.Context, exam *types.Exam, questions []types.Question) error {
	if exam == nil {
		return fmt.Errorf("missing exam")
	}
	if exam.ID == uuid.Nil {
		exam.ID = uuid.New()
	}
	db := dbc.DB(r.db)
	if err := db.Omit(clause.Associations).Create(exam).Error; err != nil {
		return err
	}
	if len(questions) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range questions {
		questions[i].ExamID = exam.ID
		questions[i].Position = i
		if questions[i].CreatedAt.IsZero() {
			questions[i].CreatedAt = now
		}
	}
	return db.Create(&questions).Error
}

func (r *examRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Exam, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var out []*types.Exam
	if err := dbc.DB(r.db).
		Model(&types.Exam{}).
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

func (r *examRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Exam, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID requires dbc.Tx")
	}
	var out []*types.Exam
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

func (r *examRepo) ListByCommitment(dbc dbctx.Context, commitmentID uuid.UUID) ([]*types.Exam, error) {
	if commitmentID == uuid.Nil {
		return nil, fmt.Errorf("missing commitment_id")
	}
	var out []*types.Exam
	if err := dbc.DB(r.db).
		Model(&types.Exam{}).
		Where("commitment_id = ?", commitmentID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *examRepo) CountUnresolved(dbc dbctx.Context, commitmentID uuid.UUID) (int64, error) {
	if commitmentID == uuid.Nil {
		return 0, fmt.Errorf("missing commitment_id")
	}
	var n int64
	if err := dbc.DB(r.db).
		Model(&types.Exam{}).
		Where("commitment_id = ? AND status IN ?", commitmentID, types.UnresolvedExamStatuses).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *examRepo) ListQuestions(dbc dbctx.Context, examID uuid.UUID) ([]types.Question, error) {
	if examID == uuid.Nil {
		return nil, fmt.Errorf("missing exam_id")
	}
	var out []types.Question
	if err := dbc.DB(r.db).
		Model(&types.Question{}).
		Where("exam_id = ?", examID).
		Order("position ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *examRepo) GetQuestion(dbc dbctx.Context, examID, questionID uuid.UUID) (*types.Question, error) {
	if examID == uuid.Nil || questionID == uuid.Nil {
		return nil, fmt.Errorf("missing exam_id or question_id")
	}
	var out []types.Question
	if err := dbc.DB(r.db).
		Model(&types.Question{}).
		Where("exam_id = ? AND id = ?", examID, questionID).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}
