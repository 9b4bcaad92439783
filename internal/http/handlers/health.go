package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/proofstake-backend/internal/http/response"
)

const readinessTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler { return &HealthHandler{db: db} }

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /readyz reports whether the database accepts connections.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "not_ready", nil)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		response.RespondError(c, http.StatusServiceUnavailable, "not_ready", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "ready"})
}
