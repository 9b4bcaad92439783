package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/proofstake-backend/internal/platform/ctxutil"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
	"github.com/yungbote/proofstake-backend/internal/services"
)

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := services.NewAuthService(logger.Nop(), "secret", time.Minute, "")
	user := uuid.New()
	tok, err := auth.IssueAccessToken(user)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	r := gin.New()
	r.Use(NewAuthMiddleware(logger.Nop(), auth).RequireAuth())
	r.GET("/me", func(c *gin.Context) {
		id, _ := ctxutil.CurrentUserID(c.Request.Context())
		c.String(http.StatusOK, id.String())
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + tok, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"ok", "Bearer " + tok, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: status want=%d got=%d", tc.name, tc.want, rec.Code)
		}
		if tc.want == http.StatusOK && rec.Body.String() != user.String() {
			t.Fatalf("%s: user want=%s got=%s", tc.name, user, rec.Body.String())
		}
	}
}
