package stakes

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const BlankAnswerFeedback = "No answer provided."

type Answer struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExamID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_exam_answer_question,priority:1" json:"exam_id"`
	QuestionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_exam_answer_question,priority:2" json:"question_id"`

	AnswerText string `gorm:"column:answer_text;not null" json:"answer_text"`

	Score    *int       `gorm:"column:score" json:"score,omitempty"`
	Feedback *string    `gorm:"column:feedback" json:"feedback,omitempty"`
	GradedAt *time.Time `gorm:"column:graded_at" json:"graded_at,omitempty"`
	SpanRef  string     `gorm:"column:span_ref" json:"span_ref,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Answer) TableName() string { return "exam_answer" }

func (a Answer) Blank() bool {
	return strings.TrimSpace(a.AnswerText) == ""
}
