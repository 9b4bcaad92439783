package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/proofstake-backend/internal/platform/apierr"
	"github.com/yungbote/proofstake-backend/internal/platform/ctxutil"
)

type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError aborts the request with the standard error envelope.
func RespondError(c *gin.Context, status int, code string, err error) {
	writeError(c, apierr.New(status, code, err))
}

// RespondServiceError maps a service error onto its status and code.
func RespondServiceError(c *gin.Context, err error) {
	writeError(c, apierr.From(err))
}

func writeError(c *gin.Context, ae *apierr.Error) {
	if ae.Err != nil {
		_ = c.Error(ae.Err)
	}
	c.AbortWithStatusJSON(ae.Status, ErrorEnvelope{
		Error: APIError{
			Message:   ae.Public(),
			Code:      ae.Code,
			RequestID: ctxutil.RequestID(c.Request.Context()),
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
