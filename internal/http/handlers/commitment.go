package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
	"github.com/yungbote/proofstake-backend/internal/http/response"
	"github.com/yungbote/proofstake-backend/internal/platform/ctxutil"
	"github.com/yungbote/proofstake-backend/internal/services"
)

type CommitmentHandler struct {
	lifecycle services.LifecycleService
}

func NewCommitmentHandler(lifecycle services.LifecycleService) *CommitmentHandler {
	return &CommitmentHandler{lifecycle: lifecycle}
}

type createCommitmentRequest struct {
	Topic        string  `json:"topic"`
	StakeAmount  float64 `json:"stake_amount"`
	DurationDays int     `json:"duration_days"`
}

// POST /api/commitments
func (h *CommitmentHandler) CreateCommitment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req createCommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	commitment, err := h.lifecycle.CreateCommitment(c.Request.Context(), userID, req.Topic, req.StakeAmount, req.DurationDays)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"commitment": commitment})
}

// GET /api/commitments?status=active,expired
func (h *CommitmentHandler) ListCommitments(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var statuses []stakes.CommitmentStatus
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if s := strings.TrimSpace(raw); s != "" {
			statuses = append(statuses, stakes.CommitmentStatus(s))
		}
	}
	out, err := h.lifecycle.ListCommitments(c.Request.Context(), userID, statuses)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	if out == nil {
		out = []*stakes.Commitment{}
	}
	response.RespondOK(c, gin.H{"commitments": out})
}

// GET /api/commitments/:id
func (h *CommitmentHandler) GetCommitment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "invalid_commitment_id")
	if !ok {
		return
	}
	commitment, err := h.lifecycle.GetCommitment(c.Request.Context(), userID, id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"commitment": commitment})
}

// POST /api/commitments/:id/exams
func (h *CommitmentHandler) GenerateExam(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "invalid_commitment_id")
	if !ok {
		return
	}
	exam, err := h.lifecycle.GenerateExam(c.Request.Context(), userID, id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"exam": newExamView(exam, exam.Questions, nil)})
}

// POST /api/commitments/sweep
func (h *CommitmentHandler) SweepExpired(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	res, err := h.lifecycle.SweepExpired(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	expired := make([]*stakes.Commitment, 0, len(res.Expired))
	for _, r := range res.Expired {
		cm := r.Commitment
		expired = append(expired, &cm)
	}
	response.RespondOK(c, gin.H{"expired": expired, "skipped": res.Skipped})
}

func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := ctxutil.CurrentUserID(c.Request.Context())
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return uuid.Nil, false
	}
	return userID, true
}

func parseIDParam(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}
