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

type AnswerRepo interface {
	// Upsert writes the answer text for (exam_id, question_id) and clears any previous grade.
	Upsert(dbc dbctx.Context, row *types.Answer) (*types.Answer, error)
	ListByExam(dbc dbctx.Context, examID uuid.UUID) ([]types.Answer, error)
	CountByExam(dbc dbctx.Context, examID uuid.UUID) (int64, error)
	ApplyGrade(dbc dbctx.Context, examID, questionID uuid.UUID, score int, feedback, spanRef string, gradedAt time.Time) (bool, error)
}

type answerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnswerRepo(db *gorm.DB, baseLog *logger.Logger) AnswerRepo {
	return &answerRepo{db: db, log: baseLog.With("repo", "AnswerRepo")}
}

func (r *answerRepo) Upsert(dbc dbctx.Context, row *types.Answer) (*types.Answer, error) {
	if row == nil || row.ExamID == uuid.Nil || row.QuestionID == uuid.Nil {
		return nil, fmt.Errorf("missing exam_id or question_id")
	}
	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}
	row.Score, row.Feedback, row.GradedAt, row.SpanRef = nil, nil, nil, ""

	db := dbc.DB(r.db)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "exam_id"}, {Name: "question_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"answer_text": row.AnswerText,
			"score":       gorm.Expr("NULL"),
			"feedback":    gorm.Expr("NULL"),
			"graded_at":   gorm.Expr("NULL"),
			"span_ref":    "",
			"updated_at":  row.UpdatedAt,
		}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}

	var out types.Answer
	if err := db.Model(&types.Answer{}).
		Where("exam_id = ? AND question_id = ?", row.ExamID, row.QuestionID).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *answerRepo) ListByExam(dbc dbctx.Context, examID uuid.UUID) ([]types.Answer, error) {
	if examID == uuid.Nil {
		return nil, fmt.Errorf("missing exam_id")
	}
	var out []types.Answer
	if err := dbc.DB(r.db).
		Model(&types.Answer{}).
		Where("exam_id = ?", examID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *answerRepo) CountByExam(dbc dbctx.Context, examID uuid.UUID) (int64, error) {
	if examID == uuid.Nil {
		return 0, fmt.Errorf("missing exam_id")
	}
	var n int64
	if err := dbc.DB(r.db).
		Model(&types.Answer{}).
		Where("exam_id = ?", examID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *answerRepo) ApplyGrade(dbc dbctx.Context, examID, questionID uuid.UUID, score int, feedback, spanRef string, gradedAt time.Time) (bool, error) {
	if examID == uuid.Nil || questionID == uuid.Nil {
		return false, fmt.Errorf("missing exam_id or question_id")
	}
	res := dbc.DB(r.db).
		Model(&types.Answer{}).
		Where("exam_id = ? AND question_id = ?", examID, questionID).
		Updates(map[string]interface{}{
			"score":      score,
			"feedback":   feedback,
			"span_ref":   spanRef,
			"graded_at":  gradedAt.UTC(),
			"updated_at": gradedAt.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
