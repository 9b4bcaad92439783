package stakes

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ExamStatus string

const (
	ExamPending       ExamStatus = "pending"
	ExamInProgress    ExamStatus = "in_progress"
	ExamSubmitted     ExamStatus = "submitted"
	ExamGraded        ExamStatus = "graded"
	ExamGradingFailed ExamStatus = "grading_failed"
)

// UnresolvedExamStatuses block generation of another exam for the same commitment.
var UnresolvedExamStatuses = []ExamStatus{ExamPending, ExamInProgress, ExamSubmitted}

func (s ExamStatus) Unresolved() bool {
	for _, u := range UnresolvedExamStatuses {
		if s == u {
			return true
		}
	}
	return false
}

const (
	MinQuestions = 5
	MaxQuestions = 10
	PassScore    = 70
)

type Exam struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CommitmentID uuid.UUID `gorm:"type:uuid;not null;index" json:"commitment_id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Status ExamStatus `gorm:"column:status;not null;index" json:"status"`

	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	SubmittedAt *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	GradedAt    *time.Time `gorm:"column:graded_at" json:"graded_at,omitempty"`

	OverallScore *int  `gorm:"column:overall_score" json:"overall_score,omitempty"`
	Passed       *bool `gorm:"column:passed" json:"passed,omitempty"`

	TraceRef      string `gorm:"column:trace_ref" json:"trace_ref,omitempty"`
	FailureReason string `gorm:"column:failure_reason" json:"failure_reason,omitempty"`

	Questions []Question `gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	Answers   []Answer   `gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Exam) TableName() string { return "exam" }

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionApplication    QuestionType = "application"
)

var QuestionTypes = []QuestionType{QuestionMultipleChoice, QuestionShortAnswer, QuestionApplication}

type Difficulty string

const (
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

const MultipleChoiceOptions = 4

// Question is immutable once generated. Position preserves generated order.
type Question struct {
	ExamID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Position int       `gorm:"column:position;not null" json:"position"`

	Type          QuestionType   `gorm:"column:type;not null" json:"type"`
	Prompt        string         `gorm:"column:prompt;not null" json:"prompt"`
	Options       datatypes.JSON `gorm:"column:options" json:"options,omitempty"`
	CorrectAnswer *string        `gorm:"column:correct_answer" json:"correct_answer,omitempty"`
	Difficulty    Difficulty     `gorm:"column:difficulty;not null" json:"difficulty"`

	CreatedAt time.Time `gorm:"not null" json:"-"`
}

func (Question) TableName() string { return "exam_question" }

func (q Question) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(q.Options, &out); err != nil {
		return nil
	}
	return out
}

func EncodeOptions(opts []string) datatypes.JSON {
	if len(opts) == 0 {
		return nil
	}
	b, _ := json.Marshal(opts)
	return datatypes.JSON(b)
}
