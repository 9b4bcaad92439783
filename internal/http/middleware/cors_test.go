package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func preflight(r http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/exams/x/answers/y", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func corsRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(origins))
	r.PUT("/api/exams/:id/answers/:question_id", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORSConfiguredOrigins(t *testing.T) {
	r := corsRouter([]string{" https://app.proofstake.dev/ ", ""})

	rec := preflight(r, "https://app.proofstake.dev")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.proofstake.dev", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = preflight(r, "http://localhost:5173")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDefaultsToLocalDev(t *testing.T) {
	r := corsRouter(nil)
	for _, origin := range DefaultCORSOrigins {
		rec := preflight(r, origin)
		require.Equal(t, http.StatusNoContent, rec.Code, origin)
		require.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}
