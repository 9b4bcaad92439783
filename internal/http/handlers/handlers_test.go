package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
	"github.com/yungbote/proofstake-backend/internal/platform/ctxutil"
	"github.com/yungbote/proofstake-backend/internal/services"
)

type stubLifecycle struct {
	services.LifecycleService

	user     uuid.UUID
	created  *stakes.Commitment
	statuses []stakes.CommitmentStatus
	view     *services.ExamView
	saved    string
	gradeErr error
	graded   []uuid.UUID
}

func (s *stubLifecycle) CreateCommitment(_ context.Context, userID uuid.UUID, topic string, stake float64, days int) (*stakes.Commitment, error) {
	c, err := stakes.NewCommitment(userID, topic, stake, days, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, "stub", err.Error(), err)
	}
	s.created = c
	return c, nil
}

func (s *stubLifecycle) ListCommitments(_ context.Context, _ uuid.UUID, statuses []stakes.CommitmentStatus) ([]*stakes.Commitment, error) {
	s.statuses = statuses
	return nil, nil
}

func (s *stubLifecycle) GetExam(_ context.Context, userID, _ uuid.UUID) (*services.ExamView, error) {
	if userID != s.user {
		return nil, domainagg.Unauthorized("stub")
	}
	return s.view, nil
}

func (s *stubLifecycle) SaveAnswer(_ context.Context, _ uuid.UUID, examID, questionID uuid.UUID, text string) (*stakes.Answer, error) {
	s.saved = text
	return &stakes.Answer{ID: uuid.New(), ExamID: examID, QuestionID: questionID, AnswerText: text}, nil
}

func (s *stubLifecycle) SubmitAndGrade(_ context.Context, _ uuid.UUID, examID uuid.UUID) (*services.GradeOutcome, error) {
	if s.gradeErr != nil {
		return nil, s.gradeErr
	}
	return &services.GradeOutcome{
		Exam:  &stakes.Exam{ID: examID, Status: stakes.ExamGraded},
		Grade: services.ExamGrade{OverallScore: 80, Passed: true},
		Resolution: stakes.Resolution{
			Action:     stakes.ActionSaved,
			Reason:     stakes.ReasonExamPassed,
			Commitment: stakes.Commitment{Status: stakes.CommitmentCompleted, StakeStatus: stakes.StakeSaved},
		},
	}, nil
}

func (s *stubLifecycle) GradeExam(ctx context.Context, userID, examID uuid.UUID) (*services.GradeOutcome, error) {
	s.graded = append(s.graded, examID)
	return s.SubmitAndGrade(ctx, userID, examID)
}

func newTestRouter(user uuid.UUID, lc services.LifecycleService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != uuid.Nil {
			c.Request = c.Request.WithContext(ctxutil.WithUserID(c.Request.Context(), user))
		}
		c.Next()
	})
	ch := NewCommitmentHandler(lc)
	eh := NewExamHandler(lc)
	r.POST("/commitments", ch.CreateCommitment)
	r.GET("/commitments", ch.ListCommitments)
	r.GET("/exams/:id", eh.GetExam)
	r.PUT("/exams/:id/answers/:question_id", eh.SaveAnswer)
	r.POST("/exams/:id/submit", eh.SubmitExam)
	r.POST("/exams/:id/grade", eh.GradeExam)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateCommitment(t *testing.T) {
	user := uuid.New()
	lc := &stubLifecycle{user: user}
	r := newTestRouter(user, lc)

	rec := do(r, http.MethodPost, "/commitments", `{"topic":"Linear algebra","stake_amount":50,"duration_days":14}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, lc.created)
	require.Equal(t, user, lc.created.UserID)

	rec = do(r, http.MethodPost, "/commitments", `{"topic":"ab","stake_amount":50,"duration_days":14}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"validation"`)

	rec = do(r, http.MethodPost, "/commitments", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid_request")
}

func TestRequiresUser(t *testing.T) {
	r := newTestRouter(uuid.Nil, &stubLifecycle{})
	rec := do(r, http.MethodGet, "/commitments", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListCommitmentsStatusFilter(t *testing.T) {
	user := uuid.New()
	lc := &stubLifecycle{user: user}
	r := newTestRouter(user, lc)

	rec := do(r, http.MethodGet, "/commitments?status=active,%20expired", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []stakes.CommitmentStatus{stakes.CommitmentActive, stakes.CommitmentExpired}, lc.statuses)
	require.JSONEq(t, `{"commitments":[]}`, rec.Body.String())
}

func TestGetExamHidesReferenceAnswersUntilGraded(t *testing.T) {
	user := uuid.New()
	correct := "B"
	exam := &stakes.Exam{ID: uuid.New(), UserID: user, Status: stakes.ExamInProgress}
	q := stakes.Question{
		ID:            uuid.New(),
		Type:          stakes.QuestionMultipleChoice,
		Prompt:        "Pick one",
		Options:       stakes.EncodeOptions([]string{"A", "B", "C", "D"}),
		CorrectAnswer: &correct,
		Difficulty:    stakes.DifficultyIntermediate,
	}
	lc := &stubLifecycle{user: user, view: &services.ExamView{Exam: exam, Questions: []stakes.Question{q}}}
	r := newTestRouter(user, lc)

	rec := do(r, http.MethodGet, "/exams/"+exam.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "correct_answer")
	require.Contains(t, rec.Body.String(), `"options":["A","B","C","D"]`)

	exam.Status = stakes.ExamGraded
	rec = do(r, http.MethodGet, "/exams/"+exam.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"correct_answer":"B"`)

	other := newTestRouter(uuid.New(), lc)
	rec = do(other, http.MethodGet, "/exams/"+exam.ID.String(), "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(r, http.MethodGet, "/exams/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveAnswer(t *testing.T) {
	user := uuid.New()
	lc := &stubLifecycle{user: user}
	r := newTestRouter(user, lc)
	path := "/exams/" + uuid.NewString() + "/answers/" + uuid.NewString()

	rec := do(r, http.MethodPut, path, `{"answer":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "", lc.saved)

	rec = do(r, http.MethodPut, path, `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitExam(t *testing.T) {
	user := uuid.New()
	lc := &stubLifecycle{user: user}
	r := newTestRouter(user, lc)
	path := "/exams/" + uuid.NewString() + "/submit"

	rec := do(r, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		OverallScore int  `json:"overall_score"`
		Passed       bool `json:"passed"`
		Stake        struct {
			Action      string `json:"action"`
			StakeStatus string `json:"stake_status"`
		} `json:"stake"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 80, body.OverallScore)
	require.True(t, body.Passed)
	require.Equal(t, string(stakes.ActionSaved), body.Stake.Action)
	require.Equal(t, string(stakes.StakeSaved), body.Stake.StakeStatus)

	lc.gradeErr = domainagg.Structural("stub", "exam has no answers")
	rec = do(r, http.MethodPost, path, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	lc.gradeErr = domainagg.NewError(domainagg.CodeMaxRetriesExceeded, "stub", "3 attempts failed", nil)
	rec = do(r, http.MethodPost, path, "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGradeExamRetriesSubmitted(t *testing.T) {
	user := uuid.New()
	lc := &stubLifecycle{user: user}
	r := newTestRouter(user, lc)
	examID := uuid.New()

	rec := do(r, http.MethodPost, "/exams/"+examID.String()+"/grade", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []uuid.UUID{examID}, lc.graded)

	rec = do(r, http.MethodPost, "/exams/not-a-uuid/grade", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
