package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
	"github.com/yungbote/proofstake-backend/internal/http/response"
	"github.com/yungbote/proofstake-backend/internal/services"
)

type ExamHandler struct {
	lifecycle services.LifecycleService
}

func NewExamHandler(lifecycle services.LifecycleService) *ExamHandler {
	return &ExamHandler{lifecycle: lifecycle}
}

type questionView struct {
	ID            uuid.UUID           `json:"id"`
	Position      int                 `json:"position"`
	Type          stakes.QuestionType `json:"type"`
	Prompt        string              `json:"prompt"`
	Options       []string            `json:"options,omitempty"`
	CorrectAnswer *string             `json:"correct_answer,omitempty"`
	Difficulty    stakes.Difficulty   `json:"difficulty"`
}

type examView struct {
	ID            uuid.UUID         `json:"id"`
	CommitmentID  uuid.UUID         `json:"commitment_id"`
	Status        stakes.ExamStatus `json:"status"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	SubmittedAt   *time.Time        `json:"submitted_at,omitempty"`
	GradedAt      *time.Time        `json:"graded_at,omitempty"`
	OverallScore  *int              `json:"overall_score,omitempty"`
	Passed        *bool             `json:"passed,omitempty"`
	TraceRef      string            `json:"trace_ref,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Questions     []questionView    `json:"questions"`
	Answers       []stakes.Answer   `json:"answers"`
	CreatedAt     time.Time         `json:"created_at"`
}

// newExamView withholds reference answers until the exam is graded.
func newExamView(exam *stakes.Exam, questions []stakes.Question, answers []stakes.Answer) examView {
	reveal := exam.Status == stakes.ExamGraded
	qs := make([]questionView, 0, len(questions))
	for _, q := range questions {
		v := questionView{
			ID:         q.ID,
			Position:   q.Position,
			Type:       q.Type,
			Prompt:     q.Prompt,
			Options:    q.OptionList(),
			Difficulty: q.Difficulty,
		}
		if reveal {
			v.CorrectAnswer = q.CorrectAnswer
		}
		qs = append(qs, v)
	}
	if answers == nil {
		answers = []stakes.Answer{}
	}
	return examView{
		ID:            exam.ID,
		CommitmentID:  exam.CommitmentID,
		Status:        exam.Status,
		StartedAt:     exam.StartedAt,
		SubmittedAt:   exam.SubmittedAt,
		GradedAt:      exam.GradedAt,
		OverallScore:  exam.OverallScore,
		Passed:        exam.Passed,
		TraceRef:      exam.TraceRef,
		FailureReason: exam.FailureReason,
		Questions:     qs,
		Answers:       answers,
		CreatedAt:     exam.CreatedAt,
	}
}

// GET /api/exams/:id
func (h *ExamHandler) GetExam(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "invalid_exam_id")
	if !ok {
		return
	}
	v, err := h.lifecycle.GetExam(c.Request.Context(), userID, id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"exam": newExamView(v.Exam, v.Questions, v.Answers)})
}

// POST /api/exams/:id/start
func (h *ExamHandler) StartExam(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "invalid_exam_id")
	if !ok {
		return
	}
	exam, err := h.lifecycle.StartExam(c.Request.Context(), userID, id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"exam": gin.H{"id": exam.ID, "status": exam.Status, "started_at": exam.StartedAt}})
}

type saveAnswerRequest struct {
	Answer *string `json:"answer"`
}

// PUT /api/exams/:id/answers/:question_id
func (h *ExamHandler) SaveAnswer(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	examID, ok := parseIDParam(c, "id", "invalid_exam_id")
	if !ok {
		return
	}
	questionID, ok := parseIDParam(c, "question_id", "invalid_question_id")
	if !ok {
		return
	}
	var req saveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Answer == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ans, err := h.lifecycle.SaveAnswer(c.Request.Context(), userID, examID, questionID, *req.Answer)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"answer": ans})
}

// POST /api/exams/:id/submit
func (h *ExamHandler) SubmitExam(c *gin.Context) {
	h.respondGrade(c, h.lifecycle.SubmitAndGrade)
}

// POST /api/exams/:id/grade
func (h *ExamHandler) GradeExam(c *gin.Context) {
	h.respondGrade(c, h.lifecycle.GradeExam)
}

// POST /api/exams/:id/regrade
func (h *ExamHandler) RegradeExam(c *gin.Context) {
	h.respondGrade(c, h.lifecycle.RegradeExam)
}

type gradeFunc func(ctx context.Context, userID, examID uuid.UUID) (*services.GradeOutcome, error)

func (h *ExamHandler) respondGrade(c *gin.Context, fn gradeFunc) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "invalid_exam_id")
	if !ok {
		return
	}
	out, err := fn(c.Request.Context(), userID, id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	perQuestion := make([]gin.H, 0, len(out.Grade.PerQuestion))
	for _, g := range out.Grade.PerQuestion {
		perQuestion = append(perQuestion, gin.H{
			"question_id": g.QuestionID,
			"score":       g.Score,
			"feedback":    g.Feedback,
		})
	}
	cm := out.Resolution.Commitment
	response.RespondOK(c, gin.H{
		"exam_id":       out.Exam.ID,
		"status":        out.Exam.Status,
		"overall_score": out.Grade.OverallScore,
		"passed":        out.Grade.Passed,
		"per_question":  perQuestion,
		"trace_ref":     out.Grade.TraceRef,
		"stake": gin.H{
			"action":        out.Resolution.Action,
			"reason":        out.Resolution.Reason,
			"commitment_id": cm.ID,
			"status":        cm.Status,
			"stake_status":  cm.StakeStatus,
			"retry_used":    cm.RetryUsed,
		},
	})
}
